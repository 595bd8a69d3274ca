package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/repository"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// setupMockService drives the real repository over a mocked sql driver, so
// the tests assert the exact statements the persistence path issues.
func setupMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	database := &db.DB{DB: mockDB, Dialect: db.DialectSQLite}
	repo := repository.NewRepository(database)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, logger), mock
}

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func validReading() types.Reading {
	return types.Reading{
		Time:         time.Date(2026, 1, 2, 14, 30, 5, 0, time.UTC),
		Temperature:  fptr(23.5),
		Humidity:     fptr(48),
		LightPercent: fptr(78.1),
		LightRaw:     iptr(51200),
		DeviceTime:   "14:30:05",
		Sequence:     iptr(7),
	}
}

func TestPersistReading_Success(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs("2026-01-02T14:30:05Z", 23.5, 48.0, 78.1, int64(51200), "14:30:05", nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	svc.PersistReading(validReading())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistReading_FailedSensorsRecordAnomalies(t *testing.T) {
	svc, mock := setupMockService(t)

	r := validReading()
	r.Temperature = nil
	r.Humidity = nil
	r.FailedSensors = []types.Field{types.FieldTemperature, types.FieldHumidity}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs("2026-01-02T14:30:05Z", nil, nil, 78.1, int64(51200), "14:30:05", nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs("2026-01-02T14:30:05Z", types.CategoryAnomaly, "temperature sensor failure at reading #7").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs("2026-01-02T14:30:05Z", types.CategoryAnomaly, "humidity sensor failure at reading #7").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	svc.PersistReading(r)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistReading_FailedLightSensorIsNotAnAnomalyEvent(t *testing.T) {
	// A reading whose light fragments carried the failure token never reaches
	// the store anyway (light is required), so anomaly events only cover the
	// optional temperature and humidity sensors.
	svc, mock := setupMockService(t)

	r := validReading()
	r.FailedSensors = []types.Field{types.FieldLightRaw}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs("2026-01-02T14:30:05Z", 23.5, 48.0, 78.1, int64(51200), "14:30:05", nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	svc.PersistReading(r)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistReading_InvalidReadingDropped(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *types.Reading)
		wantDesc string
	}{
		{
			name:     "light percent missing",
			mutate:   func(r *types.Reading) { r.LightPercent = nil },
			wantDesc: "reading #7 dropped: light_pct missing",
		},
		{
			name:     "light raw missing",
			mutate:   func(r *types.Reading) { r.LightRaw = nil },
			wantDesc: "reading #7 dropped: light_raw missing",
		},
		{
			name:     "device time missing",
			mutate:   func(r *types.Reading) { r.DeviceTime = "" },
			wantDesc: "reading #7 dropped: device_time missing",
		},
		{
			name:     "device time too long",
			mutate:   func(r *types.Reading) { r.DeviceTime = "123456789012345678901" },
			wantDesc: "reading #7 dropped: device_time longer than 20 characters",
		},
		{
			name:     "temperature out of range",
			mutate:   func(r *types.Reading) { r.Temperature = fptr(999) },
			wantDesc: "reading #7 dropped: temperature 999.00 out of range [-50, 80]",
		},
		{
			name:     "humidity out of range",
			mutate:   func(r *types.Reading) { r.Humidity = fptr(-3) },
			wantDesc: "reading #7 dropped: humidity -3.00 out of range [0, 100]",
		},
		{
			name:     "light percent out of range",
			mutate:   func(r *types.Reading) { r.LightPercent = fptr(150) },
			wantDesc: "reading #7 dropped: light_pct 150.00 out of range [0, 100]",
		},
		{
			name:     "light raw out of range",
			mutate:   func(r *types.Reading) { r.LightRaw = iptr(70000) },
			wantDesc: "reading #7 dropped: light_raw 70000 out of range [0, 65535]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := setupMockService(t)

			r := validReading()
			tt.mutate(&r)

			// Only the rejection event is written, never the reading.
			mock.ExpectExec(`INSERT INTO events`).
				WithArgs(sqlmock.AnyArg(), types.CategoryError, tt.wantDesc).
				WillReturnResult(sqlmock.NewResult(1, 1))

			svc.PersistReading(r)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPersistReading_StorageFailureAbsorbed(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO readings`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	// Must not panic and must not try to record a follow-up event.
	svc.PersistReading(validReading())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEvent(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), types.CategoryBridge, "connected to broker").
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc.RecordEvent(types.CategoryBridge, "connected to broker")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEvent_StoreDownIsSwallowed(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(errors.New("database is locked"))

	svc.RecordEvent(types.CategoryBridge, "connected to broker")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func aggregateColumns() []string {
	return []string{
		"AVG(temperature_c)", "MIN(temperature_c)", "MAX(temperature_c)",
		"AVG(humidity_pct)", "MIN(humidity_pct)", "MAX(humidity_pct)",
		"AVG(light_pct)", "MIN(light_pct)", "MAX(light_pct)",
		"COUNT(*)",
	}
}

func TestAggregateStatistics_PersistsWindow(t *testing.T) {
	svc, mock := setupMockService(t)

	rows := sqlmock.NewRows(aggregateColumns()).
		AddRow(22.0, 20.0, 24.0, 50.0, 45.0, 55.0, 60.0, 40.0, 80.0, 4)
	mock.ExpectQuery(`FROM readings`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectExec(`INSERT INTO statistics`).
		WithArgs(sqlmock.AnyArg(),
			22.0, 20.0, 24.0,
			50.0, 45.0, 55.0,
			60.0, 40.0, 80.0,
			int64(4)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc.AggregateStatistics(5 * time.Minute)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateStatistics_EmptyWindowWritesNothing(t *testing.T) {
	svc, mock := setupMockService(t)

	rows := sqlmock.NewRows(aggregateColumns()).
		AddRow(nil, nil, nil, nil, nil, nil, nil, nil, nil, 0)
	mock.ExpectQuery(`FROM readings`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	svc.AggregateStatistics(5 * time.Minute)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateStatistics_QueryFailureAbsorbed(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`FROM readings`).
		WillReturnError(errors.New("database is locked"))

	svc.AggregateStatistics(5 * time.Minute)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneEvents_RecordsMaintenanceEvent(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectExec(`DELETE FROM events`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), types.CategoryMaintenance, "pruned 5 event(s) older than 168h0m0s").
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc.PruneEvents(7 * 24 * time.Hour)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneEvents_NothingToRemove(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectExec(`DELETE FROM events`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc.PruneEvents(7 * 24 * time.Hour)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidate_PassesNilOptionals(t *testing.T) {
	r := validReading()
	r.Temperature = nil
	r.Humidity = nil
	r.ComfortLevel = nil

	if reason := validate(r); reason != "" {
		t.Errorf("validate() = %q, want empty", reason)
	}
}
