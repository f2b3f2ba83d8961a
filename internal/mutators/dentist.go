package mutators

import (
	"context"

	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// CreateDentistArgs is the payload of dentist.create.
type CreateDentistArgs struct {
	ClientStamps
	ID        string  `json:"id" validate:"required,max=64"`
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Specialty *string `json:"specialty,omitempty" validate:"omitempty,max=100"`
	Color     *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// UpdateDentistArgs is the payload of dentist.update.
type UpdateDentistArgs struct {
	ClientStamps
	ID        string  `json:"id" validate:"required,max=64"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Specialty *string `json:"specialty,omitempty" validate:"omitempty,max=100"`
	Color     *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

func CreateDentist(ctx context.Context, tx records.Tx, a CreateDentistArgs) error {
	row := newRow(tx, a.ID)
	row["firstName"] = a.FirstName
	row["lastName"] = a.LastName
	row["email"] = nullable(a.Email)
	row["phone"] = nullable(a.Phone)
	row["specialty"] = nullable(a.Specialty)
	row["color"] = nullable(a.Color)
	return tx.Insert(ctx, schema.TableDentist, row)
}

func UpdateDentist(ctx context.Context, tx records.Tx, a UpdateDentistArgs) error {
	patch := schema.Row{}
	setOpt(patch, "firstName", a.FirstName)
	setOpt(patch, "lastName", a.LastName)
	for col, v := range map[string]*string{
		"email": a.Email, "phone": a.Phone, "specialty": a.Specialty, "color": a.Color,
	} {
		if v != nil {
			patch[col] = nullable(v)
		}
	}
	return update(ctx, tx, schema.TableDentist, a.ID, patch)
}

func DeleteDentist(ctx context.Context, tx records.Tx, a ByID) error {
	return tx.Delete(ctx, schema.TableDentist, a.ID)
}
