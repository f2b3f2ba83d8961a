package organizations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })
	r := NewRepository(mock)
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r, mock
}

func TestRepositoryCreate(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO organizations`).
		WithArgs(pgxmock.AnyArg(), "Smile", "smile", int64(1700000000000), int64(1700000000000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	org := &models.Organization{Name: "Smile", Slug: "smile"}
	require.NoError(t, r.Create(context.Background(), org))
	assert.NotEqual(t, uuid.Nil, org.ID)
	assert.Equal(t, int64(1700000000000), org.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryAddMemberRejectsUnknownRole(t *testing.T) {
	r, _ := newMockRepo(t)
	err := r.AddMember(context.Background(), uuid.New(), uuid.New(), "janitor")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRepositoryGetMemberRoleNotMember(t *testing.T) {
	r, mock := newMockRepo(t)
	org, user := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT role FROM organization_members`).
		WithArgs(org, user).
		WillReturnError(pgx.ErrNoRows)

	role, err := r.GetMemberRole(context.Background(), org, user)
	require.NoError(t, err)
	assert.Equal(t, "", role)
}

func TestRepositoryListForUser(t *testing.T) {
	r, mock := newMockRepo(t)
	user, org := uuid.New(), uuid.New()
	mock.ExpectQuery(`FROM organizations o\s+INNER JOIN organization_members m`).
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "created_at", "updated_at", "role"}).
			AddRow(org, "Smile", "smile", int64(1), int64(2), models.OrgRoleDentist))

	list, err := r.ListForUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, org, list[0].ID)
	assert.Equal(t, models.OrgRoleDentist, list[0].Role)
}

func TestRepositoryIsOwner(t *testing.T) {
	r, mock := newMockRepo(t)
	user := uuid.New()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("smile", user, models.OrgRoleOwner).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := r.IsOwner(context.Background(), user, "smile")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepositorySlugTaken(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM organizations WHERE slug = \$1\)`).
		WithArgs("smile").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := r.SlugTaken(context.Background(), "smile")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
