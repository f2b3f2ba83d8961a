package schema

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
)

var (
	orgA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	orgB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func member(org uuid.UUID, role string) models.Identity {
	return models.Identity{UserID: uuid.New(), OrgID: org, Role: role}
}

func TestEveryTablePredicateIsOrgScoped(t *testing.T) {
	s := Default()
	owner := member(orgA, models.OrgRoleOwner)
	outsider := member(orgB, models.OrgRoleOwner)

	for _, name := range s.TableNames() {
		tbl, err := s.Table(name)
		require.NoError(t, err)
		row := Row{tbl.OrgColumn: orgA.String()}

		for _, op := range []Op{OpSelect, OpInsert, OpUpdate, OpDelete} {
			assert.Error(t, s.Check(op, models.Anonymous, name, row), "%s %s anonymous", op, name)
			assert.Error(t, s.Check(op, outsider, name, row), "%s %s other org", op, name)
		}
		assert.NoError(t, s.Check(OpSelect, owner, name, row), "select %s own org", name)
	}
}

func TestCheckRoles(t *testing.T) {
	s := Default()
	row := Row{"orgId": orgA.String()}

	staff := member(orgA, models.OrgRoleStaff)
	assert.NoError(t, s.Check(OpInsert, staff, TablePatient, row))
	assert.NoError(t, s.Check(OpSelect, staff, TableClinicalNote, row))

	err := s.Check(OpInsert, staff, TableClinicalNote, row)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	dentist := member(orgA, models.OrgRoleDentist)
	assert.NoError(t, s.Check(OpInsert, dentist, TableClinicalNote, row))
	assert.Error(t, s.Check(OpInsert, dentist, TableDentist, row))
	assert.Error(t, s.Check(OpUpdate, dentist, TableAttachment, row))
}

func TestFilter(t *testing.T) {
	s := Default()
	rows := []Row{
		{"id": "p1", "orgId": orgA.String()},
		{"id": "p2", "orgId": orgB.String()},
		{"id": "p3", "orgId": uuid.UUID(orgA)},
	}
	got, err := s.Filter(member(orgA, models.OrgRoleStaff), TablePatient, rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0]["id"])
	assert.Equal(t, "p3", got[1]["id"])

	_, err = s.Filter(models.Anonymous, "invoices", rows)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFilterWithoutSelectPredicateHidesRows(t *testing.T) {
	s := New(&Table{
		Name:        "draft",
		OrgColumn:   "orgId",
		Columns:     []Column{{Name: "id", Type: String}, {Name: "orgId", Type: String}},
		Permissions: Permissions{Insert: InOrg("orgId")},
	})
	rows := []Row{{"id": "d1", "orgId": orgA.String()}}

	var got []Row
	var err error
	require.NotPanics(t, func() {
		got, err = s.Filter(member(orgA, models.OrgRoleOwner), "draft", rows)
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Error(t, s.Check(OpSelect, member(orgA, models.OrgRoleOwner), "draft", rows[0]))
}

func TestValidateInsert(t *testing.T) {
	tbl, err := Default().Table(TablePatient)
	require.NoError(t, err)

	row := Row{
		"id": "p1", "orgId": orgA.String(), "firstName": "Jane", "lastName": "Doe",
		"status": PatientActive, "createdAt": int64(1), "updatedAt": int64(1),
	}
	assert.NoError(t, tbl.ValidateInsert(row))

	missing := row.Clone()
	delete(missing, "lastName")
	assert.True(t, errors.Is(tbl.ValidateInsert(missing), apperr.ErrValidation))

	unknown := row.Clone()
	unknown["ssn"] = "123"
	assert.True(t, errors.Is(tbl.ValidateInsert(unknown), apperr.ErrValidation))

	wrongType := row.Clone()
	wrongType["updatedAt"] = "yesterday"
	assert.True(t, errors.Is(tbl.ValidateInsert(wrongType), apperr.ErrValidation))
}

func TestValidatePatch(t *testing.T) {
	tbl, err := Default().Table(TablePatient)
	require.NoError(t, err)

	assert.NoError(t, tbl.ValidatePatch(Row{"firstName": "Jane", "email": nil}))
	assert.Error(t, tbl.ValidatePatch(Row{"id": "p2"}))
	assert.Error(t, tbl.ValidatePatch(Row{"firstName": nil}))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "date_of_birth", SnakeCase("dateOfBirth"))
	assert.Equal(t, "id", SnakeCase("id"))
	assert.Equal(t, "org_id", SnakeCase("orgId"))
	assert.Equal(t, "clinical_note", SnakeCase("clinicalNote"))
}
