package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := New(db, nil)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

var turbineRowColumns = []string{"id", "name", "location", "model", "rated_capacity_kw", "is_active", "installed_at", "created_at", "updated_at"}

func TestListTurbinesBuildsFilteredQuery(t *testing.T) {
	repo, mock := newMockRepository(t)
	active := true

	t.Log("step 1: count uses the same conditions as the page query")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM wind_turbines WHERE is_active = $1 AND (name ILIKE $2 OR location ILIKE $2 OR model ILIKE $2)")).
		WithArgs(true, "%north%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	t.Log("step 2: page query appends LIMIT/OFFSET placeholders")
	mock.ExpectQuery(regexp.QuoteMeta("FROM wind_turbines WHERE is_active = $1 AND (name ILIKE $2 OR location ILIKE $2 OR model ILIKE $2) ORDER BY name, id LIMIT $3 OFFSET $4")).
		WithArgs(true, "%north%", 20, 20).
		WillReturnRows(sqlmock.NewRows(turbineRowColumns).
			AddRow("T21", "North-21", "Ridge", "V90", 2000.0, true, fixedNow, fixedNow, fixedNow))

	turbines, total, err := repo.ListTurbines(context.Background(), domain.TurbineFilter{
		Active: &active,
		Search: "north",
		Page:   domain.Page{Number: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, turbines, 1)
	assert.Equal(t, "North-21", turbines[0].Name)
	assert.Equal(t, 2000.0, turbines[0].RatedCapacityKW)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurbinesByIDsKeepsRequestOrder(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wind_turbines WHERE id = ANY($1) AND is_active")).
		WillReturnRows(sqlmock.NewRows(turbineRowColumns).
			AddRow("T1", "A", "", "", 1000.0, true, fixedNow, fixedNow, fixedNow).
			AddRow("T3", "C", "", "", 1500.0, true, fixedNow, fixedNow, fixedNow))

	turbines, err := repo.TurbinesByIDs(context.Background(), []string{"T3", "T2", "T1"}, true)
	require.NoError(t, err)
	require.Len(t, turbines, 2)
	assert.Equal(t, "T3", turbines[0].ID)
	assert.Equal(t, "T1", turbines[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurbineByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wind_turbines WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.TurbineByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReadingMapsForeignKeyViolation(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO power_outputs")).
		WillReturnError(&pq.Error{Code: "23503", Detail: "Key (wind_turbine_id)=(T9) is not present"})

	_, err := repo.CreateReading(context.Background(), domain.Reading{TurbineID: "T9", PowerKW: 10})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReadingStoresOutlierKind(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO power_outputs (id, wind_turbine_id, power_kw, recorded_at, is_outlier, outlier_type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)")).
		WithArgs(sqlmock.AnyArg(), "T1", -120.5, at, true, "negative_reading", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.CreateReading(context.Background(), domain.Reading{
		TurbineID:   "T1",
		PowerKW:     -120.5,
		Timestamp:   at,
		IsOutlier:   true,
		OutlierKind: domain.OutlierNegativeReading,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReadingsUsesCopyInTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	saved, err := repo.CreateReadings(context.Background(), []domain.Reading{
		{TurbineID: "T1", PowerKW: 500},
		{TurbineID: "T2", PowerKW: 0, IsOutlier: true, OutlierKind: domain.OutlierZeroReading},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, fixedNow, saved[0].Timestamp)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReadingsMapsForeignKeyViolationOnFlush(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(&pq.Error{Code: "23503", Detail: "Key (wind_turbine_id)=(T9) is not present"})
	mock.ExpectRollback()

	_, err := repo.CreateReadings(context.Background(), []domain.Reading{{TurbineID: "T9", PowerKW: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReadingsRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreateReadings(context.Background(), []domain.Reading{{TurbineID: "T1", PowerKW: 1}})
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "copy reading", pErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReadingsOutlierModes(t *testing.T) {
	repo, mock := newMockRepository(t)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM power_outputs WHERE wind_turbine_id = $1 AND recorded_at >= $2 AND is_outlier")).
		WithArgs("T1", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY recorded_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs("T1", from, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wind_turbine_id", "power_kw", "recorded_at", "is_outlier", "outlier_type", "created_at"}).
			AddRow("r1", "T1", 0.0, fixedNow, true, "zero_reading", fixedNow))

	readings, total, err := repo.ListReadings(context.Background(), domain.ReadingFilter{
		TurbineID: "T1",
		From:      from,
		Outliers:  domain.OutliersOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, readings, 1)
	assert.Equal(t, domain.OutlierZeroReading, readings[0].OutlierKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderLifecycleQueries(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	t.Log("step 1: create maps duplicate ids to conflict")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO work_orders")).
		WillReturnError(&pq.Error{Code: "23505"})
	_, err := repo.CreateWorkOrder(ctx, domain.WorkOrder{ID: "W1", TurbineID: "T1", Title: "Inspect"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	t.Log("step 2: missing work order yields not found on update")
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE work_orders")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.UpdateWorkOrder(ctx, domain.WorkOrder{ID: "W404"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t.Log("step 3: delete without affected rows yields not found")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM work_orders WHERE id = $1")).
		WithArgs("W404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeleteWorkOrder(ctx, "W404"), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkOrderByIDScansNullableDueDate(t *testing.T) {
	repo, mock := newMockRepository(t)
	columns := []string{"id", "wind_turbine_id", "title", "description", "status", "priority", "assigned_to", "due_date", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM work_orders WHERE id = $1")).
		WithArgs("W1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("W1", "T1", "Inspect", "", "open", "high", "", nil, fixedNow, fixedNow))

	wo, err := repo.WorkOrderByID(context.Background(), "W1")
	require.NoError(t, err)
	assert.Nil(t, wo.DueDate)
	assert.Equal(t, domain.PriorityHigh, wo.Priority)
	assert.Equal(t, domain.StatusOpen, wo.Status)
}

func TestApplyMigrationsRunsFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_b.sql"), []byte("CREATE TABLE b (id INT);"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("CREATE TABLE a (id INT);"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ApplyMigrations(context.Background(), db, dir, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildDatabaseDSN(t *testing.T) {
	cfg := infraConfig("db", "5433", "fleet", "secret", "windfarm")
	dsn, err := BuildDatabaseDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://fleet:secret@db:5433/windfarm?sslmode=disable", dsn)

	cfg.DatabaseDSN = "postgres://explicit"
	dsn, err = BuildDatabaseDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://explicit", dsn)

	_, err = BuildDatabaseDSN(infraConfig("", "", "", "", ""))
	assert.Error(t, err)
	assert.False(t, ShouldCheckDatabase(infraConfig("", "", "", "", "")))
}

func infraConfig(host, port, user, password, name string) infra.Config {
	return infra.Config{
		DatabaseHost:     host,
		DatabasePort:     port,
		DatabaseUser:     user,
		DatabasePassword: password,
		DatabaseName:     name,
	}
}
