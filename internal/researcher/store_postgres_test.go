package researcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestFindOrCreate_ExistingRecordIsFilledIn(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Gaetano", "Montelione", StringPtr("RPI")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("UPDATE researchers SET").
		WithArgs(int64(7), (*string)(nil), (*string)(nil), StringPtr("Chemistry"), (*string)(nil), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := &Record{
		GivenName:   "Gaetano",
		FamilyName:  "Montelione",
		Institution: StringPtr("RPI"),
		Department:  StringPtr("Chemistry"),
		IsFaculty:   true,
	}
	id, err := store.FindOrCreate(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreate_InsertsNewRecord(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Jian", "Liu", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO researchers").
		WithArgs("Jian", "Liu", (*string)(nil), (*string)(nil), "Jian Liu",
			(*string)(nil), (*string)(nil), (*string)(nil), false).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))

	id, err := store.FindOrCreate(context.Background(), &Record{GivenName: " Jian ", FamilyName: "Liu", Institution: StringPtr("  ")})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreate_UniqueViolationReturnsWinner(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Ada", "Lovelace", StringPtr("Cambridge")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO researchers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: nameInstitutionKey})
	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Ada", "Lovelace", StringPtr("Cambridge")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("UPDATE researchers SET").
		WithArgs(int64(11), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, err := store.FindOrCreate(context.Background(), &Record{GivenName: "Ada", FamilyName: "Lovelace", Institution: StringPtr("Cambridge")})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreate_OtherInsertErrorSurfaces(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Ada", "Lovelace", (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO researchers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindOrCreate(context.Background(), &Record{GivenName: "Ada", FamilyName: "Lovelace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "researcher: create")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreate_IdempotentForSameIdentity(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Jian", "Liu", StringPtr("MIT")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO researchers").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("SELECT id FROM researchers").
		WithArgs("Jian", "Liu", StringPtr("MIT")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec("UPDATE researchers SET").
		WithArgs(int64(5), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	first, err := store.FindOrCreate(ctx, &Record{GivenName: "Jian", FamilyName: "Liu", Institution: StringPtr("MIT")})
	require.NoError(t, err)
	second, err := store.FindOrCreate(ctx, &Record{GivenName: "Jian", FamilyName: "Liu", Institution: StringPtr("MIT")})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreate_RequiresNames(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	_, err := store.FindOrCreate(context.Background(), &Record{GivenName: "Ada"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)
	now := time.Now()

	mock.ExpectQuery("SELECT r.id, r.given_name").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "given_name", "family_name", "middle_names", "name_suffix", "display_name",
			"department", "institution", "position", "is_faculty",
			"h_index", "total_citations", "publication_count", "reputation_score", "reputation_components",
			"created_at", "updated_at",
		}).AddRow(
			int64(3), "Gaetano", "Montelione", StringPtr("T"), nil, "Gaetano T Montelione",
			nil, StringPtr("RPI"), StringPtr("Professor"), true,
			intPtr(42), intPtr(9000), intPtr(310), nil, nil,
			now, now,
		))

	rec, err := store.Get(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Montelione", rec.FamilyName)
	assert.Equal(t, "T", *rec.MiddleNames)
	assert.Nil(t, rec.NameSuffix)
	assert.Equal(t, "RPI", rec.InstitutionName())
	assert.Equal(t, 42, *rec.HIndex)
	assert.Nil(t, rec.ReputationScore)
	assert.True(t, rec.IsFaculty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("SELECT r.id, r.given_name").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	rec, err := store.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectQuery("FROM researchers r").
		WithArgs(true, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "display_name", "department", "institution", "position", "is_faculty",
			"h_index", "total_citations", "reputation_score", "count", "max",
		}).
			AddRow(int64(1), "Ada Lovelace", nil, StringPtr("Cambridge"), nil, true,
				intPtr(3), intPtr(40), floatPtr(6.5), 4, intPtr(2021)).
			AddRow(int64(2), "Jian Liu", nil, nil, nil, true,
				nil, nil, nil, 0, nil))

	got, err := store.List(context.Background(), ListFilter{FacultyOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].PublicationCount)
	assert.Equal(t, 2021, *got[0].LatestYear)
	assert.Nil(t, got[1].LatestYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFaculty(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE researchers SET is_faculty = true").
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkFaculty(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMetrics(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE researchers SET").
		WithArgs(int64(4), 12, 800, 30).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateMetrics(context.Background(), 4, Metrics{HIndex: 12, TotalCitations: 800, PublicationCount: 30})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEmpty(t *testing.T) {
	t.Run("dry run counts", func(t *testing.T) {
		mock := newMock(t)
		store := NewPostgresStore(mock)

		mock.ExpectQuery("SELECT count").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

		n, err := store.DeleteEmpty(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("live deletes", func(t *testing.T) {
		mock := newMock(t)
		store := NewPostgresStore(mock)

		mock.ExpectExec("DELETE FROM researchers r WHERE").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		n, err := store.DeleteEmpty(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDisplayNameOf(t *testing.T) {
	assert.Equal(t, "Gaetano T Montelione Jr.", DisplayNameOf("Gaetano", "T", "Montelione", "Jr."))
	assert.Equal(t, "Jian Liu", DisplayNameOf("Jian", "", "Liu", " "))
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }
