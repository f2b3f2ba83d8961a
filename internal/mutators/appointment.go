package mutators

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// Wall-clock layouts accepted for appointment start and end.
var wallClockLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

// CreateAppointmentArgs is the payload of appointment.create. Start and End are
// local wall-clock times in TimeZone.
type CreateAppointmentArgs struct {
	ClientStamps
	ID        string  `json:"id" validate:"required,max=64"`
	PatientID string  `json:"patientId" validate:"required,max=64"`
	DentistID string  `json:"dentistId" validate:"required,max=64"`
	Start     string  `json:"start" validate:"required"`
	End       string  `json:"end" validate:"required"`
	TimeZone  string  `json:"timeZone" validate:"required,timezone"`
	Title     *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Notes     *string `json:"notes,omitempty"`
	Status    string  `json:"status,omitempty" validate:"omitempty,oneof=SCHEDULED CONFIRMED CANCELLED COMPLETED"`
}

// UpdateAppointmentArgs is the payload of appointment.update. TimeZone is
// required whenever Start or End is given.
type UpdateAppointmentArgs struct {
	ClientStamps
	ID        string  `json:"id" validate:"required,max=64"`
	PatientID *string `json:"patientId,omitempty" validate:"omitempty,min=1,max=64"`
	DentistID *string `json:"dentistId,omitempty" validate:"omitempty,min=1,max=64"`
	Start     *string `json:"start,omitempty"`
	End       *string `json:"end,omitempty"`
	TimeZone  string  `json:"timeZone,omitempty" validate:"omitempty,timezone"`
	Title     *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Notes     *string `json:"notes,omitempty"`
	Status    *string `json:"status,omitempty" validate:"omitempty,oneof=SCHEDULED CONFIRMED CANCELLED COMPLETED"`
}

// WallClockToMillis interprets value as a local time in the IANA zone tz and
// returns the instant as epoch milliseconds.
func WallClockToMillis(value, tz string) (int64, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, apperr.Validation(fmt.Sprintf("unknown time zone %q", tz))
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, apperr.Validation(fmt.Sprintf("invalid wall-clock time %q", value))
}

func checkInterval(start, end int64) error {
	if end <= start {
		return apperr.Validation("appointment must end after it starts")
	}
	return nil
}

func CreateAppointment(ctx context.Context, tx records.Tx, a CreateAppointmentArgs) error {
	start, err := WallClockToMillis(a.Start, a.TimeZone)
	if err != nil {
		return err
	}
	end, err := WallClockToMillis(a.End, a.TimeZone)
	if err != nil {
		return err
	}
	if err := checkInterval(start, end); err != nil {
		return err
	}

	row := newRow(tx, a.ID)
	row["patientId"] = a.PatientID
	row["dentistId"] = a.DentistID
	row["startsAt"] = start
	row["endsAt"] = end
	row["title"] = nullable(a.Title)
	row["notes"] = nullable(a.Notes)
	row["status"] = schema.AppointmentScheduled
	if a.Status != "" {
		row["status"] = a.Status
	}
	return tx.Insert(ctx, schema.TableAppointment, row)
}

func UpdateAppointment(ctx context.Context, tx records.Tx, a UpdateAppointmentArgs) error {
	patch := schema.Row{}
	setOpt(patch, "patientId", a.PatientID)
	setOpt(patch, "dentistId", a.DentistID)
	setOpt(patch, "status", a.Status)
	if a.Title != nil {
		patch["title"] = nullable(a.Title)
	}
	if a.Notes != nil {
		patch["notes"] = nullable(a.Notes)
	}

	if a.Start != nil || a.End != nil {
		if a.TimeZone == "" {
			return apperr.Validation("timeZone is required when start or end changes")
		}
		current, err := tx.Get(ctx, schema.TableAppointment, a.ID)
		if err != nil {
			return err
		}
		start, end := toMillis(current["startsAt"]), toMillis(current["endsAt"])
		if a.Start != nil {
			if start, err = WallClockToMillis(*a.Start, a.TimeZone); err != nil {
				return err
			}
			patch["startsAt"] = start
		}
		if a.End != nil {
			if end, err = WallClockToMillis(*a.End, a.TimeZone); err != nil {
				return err
			}
			patch["endsAt"] = end
		}
		if err := checkInterval(start, end); err != nil {
			return err
		}
	}
	return update(ctx, tx, schema.TableAppointment, a.ID, patch)
}

func DeleteAppointment(ctx context.Context, tx records.Tx, a ByID) error {
	return tx.Delete(ctx, schema.TableAppointment, a.ID)
}

func toMillis(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
