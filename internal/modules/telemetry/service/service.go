package service

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/metrics"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/repository"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// Service is the persistence boundary for correlated readings: it validates
// numeric ranges, derives anomaly events and commits the reading with its
// events as one unit. Storage failures are absorbed here: the reading is
// dropped, logged, and the next flush is attempted independently.
type Service struct {
	repository repository.TelemetryRepository
	logger     *slog.Logger
}

func NewService(repository repository.TelemetryRepository, logger *slog.Logger) *Service {
	return &Service{repository: repository, logger: logger}
}

// PersistReading validates and stores one flushed reading. Present values
// outside their plausibility range reject the whole row; absent values pass.
func (s *Service) PersistReading(r types.Reading) {
	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}

	if reason := validate(r); reason != "" {
		metrics.ReadingDropped("invalid")
		s.logger.Warn("reading rejected", "sequence", seqVal(r.Sequence), "reason", reason)
		s.RecordEvent(types.CategoryError,
			fmt.Sprintf("reading #%d dropped: %s", seqVal(r.Sequence), reason))
		return
	}

	anomalies := anomalyEvents(r)
	if err := s.repository.InsertReading(r, anomalies); err != nil {
		metrics.ReadingDropped("storage")
		s.logger.Error("reading not persisted, store unavailable",
			"sequence", seqVal(r.Sequence),
			"error", err,
		)
		return
	}

	metrics.ReadingPersisted()
	for _, e := range anomalies {
		metrics.EventRecorded(e.Category)
	}
	s.logger.Info("reading persisted",
		"sequence", seqVal(r.Sequence),
		"device_time", r.DeviceTime,
		"anomalies", len(anomalies),
	)
}

// RecordEvent appends one event row. Failures are logged and swallowed: the
// store is the event sink, so when it is down the log line is all there is.
func (s *Service) RecordEvent(category, description string) {
	e := types.Event{
		Time:        time.Now().UTC(),
		Category:    category,
		Description: description,
	}
	if err := s.repository.InsertEvent(e); err != nil {
		s.logger.Error("event not recorded",
			"category", category,
			"description", description,
			"error", err,
		)
		return
	}
	metrics.EventRecorded(category)
	s.logger.Debug("event recorded", "category", category, "description", description)
}

// AggregateStatistics rolls the trailing window up into one statistics row.
// An empty window produces no row.
func (s *Service) AggregateStatistics(window time.Duration) {
	to := time.Now().UTC()
	from := to.Add(-window)

	stat, err := s.repository.AggregateWindow(from, to)
	if err != nil {
		s.logger.Error("statistics aggregation failed", "error", err)
		return
	}
	if stat.ReadingCount == 0 {
		s.logger.Debug("statistics window empty, nothing to record")
		return
	}

	stat.Time = to
	if err := s.repository.InsertStatistic(stat); err != nil {
		s.logger.Error("statistics not persisted", "error", err)
		return
	}
	s.logger.Info("statistics aggregated",
		"window", window,
		"readings", stat.ReadingCount,
	)
}

// PruneEvents removes events older than the retention age and records a
// maintenance event when anything was removed.
func (s *Service) PruneEvents(olderThan time.Duration) {
	cutoff := time.Now().UTC().Add(-olderThan)
	n, err := s.repository.PruneEvents(cutoff)
	if err != nil {
		s.logger.Error("event pruning failed", "error", err)
		return
	}
	if n == 0 {
		return
	}
	s.logger.Info("events pruned", "removed", n, "cutoff", cutoff)
	s.RecordEvent(types.CategoryMaintenance,
		fmt.Sprintf("pruned %d event(s) older than %s", n, olderThan))
}

// validate returns "" for a persistable reading, otherwise the reason it
// must be rejected. Absent optional values always pass; the light fields and
// device time are required by the schema.
func validate(r types.Reading) string {
	if r.LightPercent == nil {
		return "light_pct missing"
	}
	if r.LightRaw == nil {
		return "light_raw missing"
	}
	if r.DeviceTime == "" {
		return "device_time missing"
	}
	if utf8.RuneCountInString(r.DeviceTime) > types.DeviceTimeMaxLen {
		return fmt.Sprintf("device_time longer than %d characters", types.DeviceTimeMaxLen)
	}
	if r.Temperature != nil && (*r.Temperature < types.TemperatureMin || *r.Temperature > types.TemperatureMax) {
		return fmt.Sprintf("temperature %.2f out of range [%g, %g]",
			*r.Temperature, float64(types.TemperatureMin), float64(types.TemperatureMax))
	}
	if r.Humidity != nil && (*r.Humidity < types.HumidityMin || *r.Humidity > types.HumidityMax) {
		return fmt.Sprintf("humidity %.2f out of range [%g, %g]",
			*r.Humidity, float64(types.HumidityMin), float64(types.HumidityMax))
	}
	if *r.LightPercent < types.LightPercentMin || *r.LightPercent > types.LightPercentMax {
		return fmt.Sprintf("light_pct %.2f out of range [%g, %g]",
			*r.LightPercent, float64(types.LightPercentMin), float64(types.LightPercentMax))
	}
	if *r.LightRaw < types.LightRawMin || *r.LightRaw > types.LightRawMax {
		return fmt.Sprintf("light_raw %d out of range [%d, %d]",
			*r.LightRaw, types.LightRawMin, types.LightRawMax)
	}
	return ""
}

// anomalyEvents builds one ANOMALY event per failed temperature or humidity
// sensor, stamped with the reading's own time so the row and its anomalies
// line up in the store.
func anomalyEvents(r types.Reading) []types.Event {
	var out []types.Event
	for _, f := range r.FailedSensors {
		if f != types.FieldTemperature && f != types.FieldHumidity {
			continue
		}
		out = append(out, types.Event{
			Time:        r.Time,
			Category:    types.CategoryAnomaly,
			Description: fmt.Sprintf("%s sensor failure at reading #%d", f, seqVal(r.Sequence)),
		})
	}
	return out
}

func seqVal(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
