package schema

import "github.com/nextoral/backend/internal/models"

// Table names as addressed by mutators and the pull endpoint.
const (
	TableOrganization = "organization"
	TableMember       = "member"
	TableDentist      = "dentist"
	TablePatient      = "patient"
	TableAddress      = "address"
	TableAppointment  = "appointment"
	TableClinicalNote = "clinicalNote"
	TableAttachment   = "attachment"
)

// Patient and appointment status values.
const (
	PatientActive   = "ACTIVE"
	PatientInactive = "INACTIVE"

	AppointmentScheduled = "SCHEDULED"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCancelled = "CANCELLED"
	AppointmentCompleted = "COMPLETED"
)

var (
	managers   = []string{models.OrgRoleOwner, models.OrgRoleAdmin}
	clinicians = []string{models.OrgRoleOwner, models.OrgRoleAdmin, models.OrgRoleDentist}
)

func stamps() []Column {
	return []Column{
		{Name: "createdAt", Type: Number},
		{Name: "updatedAt", Type: Number},
	}
}

func orgScoped(cols ...Column) []Column {
	out := []Column{{Name: "id", Type: String}, {Name: "orgId", Type: String}}
	out = append(out, cols...)
	return append(out, stamps()...)
}

// orgRecord grants every org member full access to rows of their organization.
func orgRecord() Permissions {
	in := InOrg("orgId")
	return Permissions{Select: in, Insert: in, Update: in, Delete: in}
}

// orgRecordWriters lets every member read while only writers may change rows.
func orgRecordWriters(roles ...string) Permissions {
	w := InOrgWithRole("orgId", roles...)
	return Permissions{Select: InOrg("orgId"), Insert: w, Update: w, Delete: w}
}

// Default returns the clinic schema. Every predicate is scoped to the caller's
// active organization; anonymous callers can neither read nor write.
func Default() *Schema {
	return New(
		&Table{
			Name:      TableOrganization,
			SQLName:   "organizations",
			OrgColumn: "id",
			Columns: append([]Column{
				{Name: "id", Type: String},
				{Name: "name", Type: String},
				{Name: "slug", Type: String},
			}, stamps()...),
			Permissions: Permissions{
				Select: InOrg("id"),
				Update: InOrgWithRole("id", managers...),
			},
		},
		&Table{
			Name:      TableMember,
			SQLName:   "organization_members",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "userId", Type: String},
				Column{Name: "role", Type: String},
			),
			Permissions: Permissions{Select: InOrg("orgId")},
		},
		&Table{
			Name:      TableDentist,
			SQLName:   "dentists",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "firstName", Type: String},
				Column{Name: "lastName", Type: String},
				Column{Name: "email", Type: String, Optional: true},
				Column{Name: "phone", Type: String, Optional: true},
				Column{Name: "specialty", Type: String, Optional: true},
				Column{Name: "color", Type: String, Optional: true},
			),
			Permissions: orgRecordWriters(managers...),
		},
		&Table{
			Name:      TablePatient,
			SQLName:   "patients",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "firstName", Type: String},
				Column{Name: "lastName", Type: String},
				Column{Name: "email", Type: String, Optional: true},
				Column{Name: "phone", Type: String, Optional: true},
				Column{Name: "dateOfBirth", Type: String, Optional: true},
				Column{Name: "addressId", Type: String, Optional: true},
				Column{Name: "status", Type: String},
				Column{Name: "notes", Type: String, Optional: true},
			),
			Permissions: orgRecord(),
		},
		&Table{
			Name:      TableAddress,
			SQLName:   "addresses",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "patientId", Type: String},
				Column{Name: "street", Type: String, Optional: true},
				Column{Name: "city", Type: String, Optional: true},
				Column{Name: "postalCode", Type: String, Optional: true},
				Column{Name: "country", Type: String, Optional: true},
			),
			References:  []Reference{{Column: "patientId", Table: TablePatient}},
			Permissions: orgRecord(),
		},
		&Table{
			Name:      TableAppointment,
			SQLName:   "appointments",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "patientId", Type: String},
				Column{Name: "dentistId", Type: String},
				Column{Name: "startsAt", Type: Number},
				Column{Name: "endsAt", Type: Number},
				Column{Name: "title", Type: String, Optional: true},
				Column{Name: "notes", Type: String, Optional: true},
				Column{Name: "status", Type: String},
			),
			References: []Reference{
				{Column: "patientId", Table: TablePatient},
				{Column: "dentistId", Table: TableDentist},
			},
			Permissions: orgRecord(),
		},
		&Table{
			Name:      TableClinicalNote,
			SQLName:   "clinical_notes",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "patientId", Type: String},
				Column{Name: "appointmentId", Type: String, Optional: true},
				Column{Name: "authorId", Type: String, Optional: true},
				Column{Name: "content", Type: String},
				Column{Name: "teeth", Type: String, Optional: true},
			),
			References: []Reference{
				{Column: "patientId", Table: TablePatient},
				{Column: "appointmentId", Table: TableAppointment},
			},
			Permissions: orgRecordWriters(clinicians...),
		},
		&Table{
			Name:      TableAttachment,
			SQLName:   "attachments",
			OrgColumn: "orgId",
			Columns: orgScoped(
				Column{Name: "noteId", Type: String},
				Column{Name: "objectKey", Type: String},
				Column{Name: "filename", Type: String},
				Column{Name: "contentType", Type: String},
			),
			References: []Reference{{Column: "noteId", Table: TableClinicalNote}},
			Permissions: Permissions{
				Select: InOrg("orgId"),
				Insert: InOrgWithRole("orgId", clinicians...),
				Delete: InOrgWithRole("orgId", clinicians...),
			},
		},
	)
}
