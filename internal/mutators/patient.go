package mutators

import (
	"context"

	"github.com/nextoral/backend/internal/records"
	"github.com/nextoral/backend/internal/schema"
)

// AddressInput is the optional address written together with a new patient.
type AddressInput struct {
	ID         string  `json:"id" validate:"required,max=64"`
	Street     *string `json:"street,omitempty" validate:"omitempty,max=200"`
	City       *string `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode *string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	Country    *string `json:"country,omitempty" validate:"omitempty,max=100"`
}

// CreatePatientArgs is the payload of patient.create.
type CreatePatientArgs struct {
	ClientStamps
	ID          string        `json:"id" validate:"required,max=64"`
	FirstName   string        `json:"firstName" validate:"required,max=100"`
	LastName    string        `json:"lastName" validate:"required,max=100"`
	Email       *string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string       `json:"phone,omitempty" validate:"omitempty,max=40"`
	DateOfBirth *string       `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status      string        `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Notes       *string       `json:"notes,omitempty"`
	Address     *AddressInput `json:"address,omitempty"`
}

// UpdatePatientArgs is the payload of patient.update. Absent fields are left unchanged.
type UpdatePatientArgs struct {
	ClientStamps
	ID          string  `json:"id" validate:"required,max=64"`
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	DateOfBirth *string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Notes       *string `json:"notes,omitempty"`
}

// UpdateAddressArgs is the payload of address.update.
type UpdateAddressArgs struct {
	ClientStamps
	AddressInput
}

// CreatePatient inserts a patient and, when given, its address.
func CreatePatient(ctx context.Context, tx records.Tx, a CreatePatientArgs) error {
	row := newRow(tx, a.ID)
	row["firstName"] = a.FirstName
	row["lastName"] = a.LastName
	row["email"] = nullable(a.Email)
	row["phone"] = nullable(a.Phone)
	row["dateOfBirth"] = nullable(a.DateOfBirth)
	row["notes"] = nullable(a.Notes)
	row["status"] = schema.PatientActive
	if a.Status != "" {
		row["status"] = a.Status
	}
	if a.Address != nil {
		row["addressId"] = a.Address.ID
	}
	if err := tx.Insert(ctx, schema.TablePatient, row); err != nil {
		return err
	}
	if a.Address == nil {
		return nil
	}

	addr := newRow(tx, a.Address.ID)
	addr["patientId"] = a.ID
	addr["street"] = nullable(a.Address.Street)
	addr["city"] = nullable(a.Address.City)
	addr["postalCode"] = nullable(a.Address.PostalCode)
	addr["country"] = nullable(a.Address.Country)
	return tx.Insert(ctx, schema.TableAddress, addr)
}

// UpdatePatient applies the given fields and restamps updatedAt.
func UpdatePatient(ctx context.Context, tx records.Tx, a UpdatePatientArgs) error {
	patch := schema.Row{}
	setOpt(patch, "firstName", a.FirstName)
	setOpt(patch, "lastName", a.LastName)
	setOpt(patch, "status", a.Status)
	if a.Email != nil {
		patch["email"] = nullable(a.Email)
	}
	if a.Phone != nil {
		patch["phone"] = nullable(a.Phone)
	}
	if a.DateOfBirth != nil {
		patch["dateOfBirth"] = nullable(a.DateOfBirth)
	}
	if a.Notes != nil {
		patch["notes"] = nullable(a.Notes)
	}
	return update(ctx, tx, schema.TablePatient, a.ID, patch)
}

// DeletePatient removes a patient and its address. Absent patients are ignored.
func DeletePatient(ctx context.Context, tx records.Tx, a ByID) error {
	row, err := tx.Get(ctx, schema.TablePatient, a.ID)
	if err != nil {
		return ignoreNotFound(err)
	}
	if addrID := row.String("addressId"); addrID != "" {
		if err := tx.Delete(ctx, schema.TableAddress, addrID); err != nil {
			return err
		}
	}
	return tx.Delete(ctx, schema.TablePatient, a.ID)
}

// UpdateAddress patches a patient's address.
func UpdateAddress(ctx context.Context, tx records.Tx, a UpdateAddressArgs) error {
	patch := schema.Row{}
	if a.Street != nil {
		patch["street"] = nullable(a.Street)
	}
	if a.City != nil {
		patch["city"] = nullable(a.City)
	}
	if a.PostalCode != nil {
		patch["postalCode"] = nullable(a.PostalCode)
	}
	if a.Country != nil {
		patch["country"] = nullable(a.Country)
	}
	return update(ctx, tx, schema.TableAddress, a.ID, patch)
}
