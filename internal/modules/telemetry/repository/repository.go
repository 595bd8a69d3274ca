package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/insert-event.sql
var insertEventSQL string

//go:embed sql/insert-statistic.sql
var insertStatisticSQL string

//go:embed sql/aggregate-window.sql
var aggregateWindowSQL string

//go:embed sql/recent-readings.sql
var recentReadingsSQL string

//go:embed sql/recent-events.sql
var recentEventsSQL string

//go:embed sql/recent-statistics.sql
var recentStatisticsSQL string

//go:embed sql/max-sequence.sql
var maxSequenceSQL string

//go:embed sql/prune-events.sql
var pruneEventsSQL string

type TelemetryRepository interface {
	// InsertReading writes a reading and its anomaly events as one
	// transaction: all rows commit or none do.
	InsertReading(r types.Reading, anomalies []types.Event) error
	InsertEvent(e types.Event) error
	InsertStatistic(s types.Statistic) error
	// AggregateWindow computes avg/min/max per metric over readings with
	// from <= ts < to. ReadingCount is zero for an empty window.
	AggregateWindow(from, to time.Time) (types.Statistic, error)
	RecentReadings(limit int) ([]types.Reading, error)
	RecentEvents(limit int) ([]types.Event, error)
	RecentStatistics(limit int) ([]types.Statistic, error)
	// MaxSequence returns the highest persisted sequence number, zero on an
	// empty store.
	MaxSequence() (int64, error)
	// PruneEvents deletes events older than before and reports how many.
	PruneEvents(before time.Time) (int64, error)
}

type repositoryImpl struct {
	db *db.DB
}

func NewRepository(database *db.DB) TelemetryRepository {
	return &repositoryImpl{db: database}
}

func (r *repositoryImpl) InsertReading(reading types.Reading, anomalies []types.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reading tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tsStr := reading.Time.UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(r.db.Rebind(insertReadingSQL),
		tsStr,
		reading.Temperature,
		reading.Humidity,
		reading.LightPercent,
		reading.LightRaw,
		reading.DeviceTime,
		reading.ComfortLevel,
		reading.Sequence,
	); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	for _, e := range anomalies {
		if _, err := tx.Exec(r.db.Rebind(insertEventSQL),
			e.Time.UTC().Format(time.RFC3339Nano),
			e.Category,
			e.Description,
		); err != nil {
			return fmt.Errorf("insert anomaly event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) InsertEvent(e types.Event) error {
	_, err := r.db.Exec(r.db.Rebind(insertEventSQL),
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Category,
		e.Description,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *repositoryImpl) InsertStatistic(s types.Statistic) error {
	_, err := r.db.Exec(r.db.Rebind(insertStatisticSQL),
		s.Time.UTC().Format(time.RFC3339Nano),
		s.TemperatureAvg, s.TemperatureMin, s.TemperatureMax,
		s.HumidityAvg, s.HumidityMin, s.HumidityMax,
		s.LightAvg, s.LightMin, s.LightMax,
		s.ReadingCount,
	)
	if err != nil {
		return fmt.Errorf("insert statistic: %w", err)
	}
	return nil
}

func (r *repositoryImpl) AggregateWindow(from, to time.Time) (types.Statistic, error) {
	fromStr := from.UTC().Format(time.RFC3339Nano)
	toStr := to.UTC().Format(time.RFC3339Nano)

	var (
		s                types.Statistic
		tAvg, tMin, tMax sql.NullFloat64
		hAvg, hMin, hMax sql.NullFloat64
		lAvg, lMin, lMax sql.NullFloat64
	)
	err := r.db.QueryRow(r.db.Rebind(aggregateWindowSQL), fromStr, toStr).Scan(
		&tAvg, &tMin, &tMax,
		&hAvg, &hMin, &hMax,
		&lAvg, &lMin, &lMax,
		&s.ReadingCount,
	)
	if err != nil {
		return types.Statistic{}, fmt.Errorf("aggregate window: %w", err)
	}

	s.TemperatureAvg = nullFloat(tAvg)
	s.TemperatureMin = nullFloat(tMin)
	s.TemperatureMax = nullFloat(tMax)
	s.HumidityAvg = nullFloat(hAvg)
	s.HumidityMin = nullFloat(hMin)
	s.HumidityMax = nullFloat(hMax)
	s.LightAvg = nullFloat(lAvg)
	s.LightMin = nullFloat(lMin)
	s.LightMax = nullFloat(lMax)
	return s, nil
}

func (r *repositoryImpl) RecentReadings(limit int) ([]types.Reading, error) {
	rows, err := r.db.Query(r.db.Rebind(recentReadingsSQL), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) RecentEvents(limit int) ([]types.Event, error) {
	rows, err := r.db.Query(r.db.Rebind(recentEventsSQL), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close events rows", "error", err)
		}
	}()

	var out []types.Event
	for rows.Next() {
		var (
			e  types.Event
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Category, &e.Description); err != nil {
			return nil, err
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		e.Time = t
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) RecentStatistics(limit int) ([]types.Statistic, error) {
	rows, err := r.db.Query(r.db.Rebind(recentStatisticsSQL), limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close statistics rows", "error", err)
		}
	}()

	var out []types.Statistic
	for rows.Next() {
		var (
			s                types.Statistic
			ts               string
			tAvg, tMin, tMax sql.NullFloat64
			hAvg, hMin, hMax sql.NullFloat64
			lAvg, lMin, lMax sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &ts,
			&tAvg, &tMin, &tMax,
			&hAvg, &hMin, &hMax,
			&lAvg, &lMin, &lMax,
			&s.ReadingCount,
		); err != nil {
			return nil, err
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		s.Time = t
		s.TemperatureAvg = nullFloat(tAvg)
		s.TemperatureMin = nullFloat(tMin)
		s.TemperatureMax = nullFloat(tMax)
		s.HumidityAvg = nullFloat(hAvg)
		s.HumidityMin = nullFloat(hMin)
		s.HumidityMax = nullFloat(hMax)
		s.LightAvg = nullFloat(lAvg)
		s.LightMin = nullFloat(lMin)
		s.LightMax = nullFloat(lMax)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) MaxSequence() (int64, error) {
	var seq sql.NullInt64
	if err := r.db.QueryRow(maxSequenceSQL).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	return seq.Int64, nil
}

func (r *repositoryImpl) PruneEvents(before time.Time) (int64, error) {
	res, err := r.db.Exec(r.db.Rebind(pruneEventsSQL), before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events affected: %w", err)
	}
	return n, nil
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	var out []types.Reading
	for rows.Next() {
		var (
			rec      types.Reading
			ts       string
			temp     sql.NullFloat64
			hum      sql.NullFloat64
			lightPct sql.NullFloat64
			lightRaw sql.NullInt64
			comfort  sql.NullString
			seq      sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &ts, &temp, &hum, &lightPct, &lightRaw, &rec.DeviceTime, &comfort, &seq); err != nil {
			return nil, err
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		rec.Time = t
		rec.Temperature = nullFloat(temp)
		rec.Humidity = nullFloat(hum)
		rec.LightPercent = nullFloat(lightPct)
		rec.LightRaw = nullInt(lightRaw)
		rec.ComfortLevel = nullString(comfort)
		rec.Sequence = nullInt(seq)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
