package mutators

import (
	"context"

	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// CreateClinicalNoteArgs is the payload of clinicalNote.create. The author is
// the calling user.
type CreateClinicalNoteArgs struct {
	ClientStamps
	ID            string  `json:"id" validate:"required,max=64"`
	PatientID     string  `json:"patientId" validate:"required,max=64"`
	AppointmentID *string `json:"appointmentId,omitempty" validate:"omitempty,max=64"`
	Content       string  `json:"content" validate:"required"`
	Teeth         *string `json:"teeth,omitempty" validate:"omitempty,max=200"`
}

// UpdateClinicalNoteArgs is the payload of clinicalNote.update.
type UpdateClinicalNoteArgs struct {
	ClientStamps
	ID      string  `json:"id" validate:"required,max=64"`
	Content *string `json:"content,omitempty" validate:"omitempty,min=1"`
	Teeth   *string `json:"teeth,omitempty" validate:"omitempty,max=200"`
}

func CreateClinicalNote(ctx context.Context, tx records.Tx, a CreateClinicalNoteArgs) error {
	row := newRow(tx, a.ID)
	row["patientId"] = a.PatientID
	row["appointmentId"] = nullable(a.AppointmentID)
	row["content"] = a.Content
	row["teeth"] = nullable(a.Teeth)
	row["authorId"] = nil
	if id := tx.Identity(); !id.IsAnonymous() {
		row["authorId"] = id.UserID.String()
	}
	return tx.Insert(ctx, schema.TableClinicalNote, row)
}

func UpdateClinicalNote(ctx context.Context, tx records.Tx, a UpdateClinicalNoteArgs) error {
	patch := schema.Row{}
	setOpt(patch, "content", a.Content)
	if a.Teeth != nil {
		patch["teeth"] = nullable(a.Teeth)
	}
	return update(ctx, tx, schema.TableClinicalNote, a.ID, patch)
}

func DeleteClinicalNote(ctx context.Context, tx records.Tx, a ByID) error {
	return tx.Delete(ctx, schema.TableClinicalNote, a.ID)
}
