package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/metrics"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// PlaceholderDeviceTime marks readings flushed by timeout before the station
// published its clock fragment.
const PlaceholderDeviceTime = "UNKNOWN"

// FlushReason tags why a session became a reading.
type FlushReason string

const (
	FlushReady   FlushReason = "ready"
	FlushTimeout FlushReason = "timeout"
)

// ExpiryAction is the outcome of one expiry sweep.
type ExpiryAction int

const (
	ExpiryNone ExpiryAction = iota
	ExpiryFlushed
	ExpiryDiscarded
)

// ExpiryResult carries the sweep outcome plus enough session detail for the
// caller to log and record events about it.
type ExpiryResult struct {
	Action  ExpiryAction
	Reading types.Reading
	Session string
	Fields  int
	Age     time.Duration
}

// numSlot is a tri-state cell: empty, failed (sensor reported the failure
// token) or holding a value. Every write overwrites the previous state.
type numSlot struct {
	set    bool
	failed bool
	v      float64
}

func (s *numSlot) apply(v *float64) {
	s.set = true
	if v == nil {
		s.failed = true
		s.v = 0
		return
	}
	s.failed = false
	s.v = *v
}

func (s numSlot) value() *float64 {
	if !s.set || s.failed {
		return nil
	}
	v := s.v
	return &v
}

type intSlot struct {
	set    bool
	failed bool
	v      int64
}

func (s *intSlot) apply(v *int64) {
	s.set = true
	if v == nil {
		s.failed = true
		s.v = 0
		return
	}
	s.failed = false
	s.v = *v
}

func (s intSlot) value() *int64 {
	if !s.set || s.failed {
		return nil
	}
	v := s.v
	return &v
}

type textSlot struct {
	set bool
	v   string
}

// session is one correlation window: the fragments collected since the last
// flush. The station publishes its fields in a burst, device time last, so a
// session normally lives well under a second.
type session struct {
	id          string
	temperature numSlot
	humidity    numSlot
	lightPct    numSlot
	lightRaw    intSlot
	deviceTime  textSlot
	comfort     textSlot
	lastUpdate  time.Time
}

func newSession() session {
	return session{id: uuid.NewString()[:8]}
}

func (s *session) empty() bool {
	return !s.temperature.set && !s.humidity.set && !s.lightPct.set &&
		!s.lightRaw.set && !s.deviceTime.set && !s.comfort.set
}

func (s *session) fieldCount() int {
	n := 0
	for _, set := range []bool{
		s.temperature.set, s.humidity.set, s.lightPct.set,
		s.lightRaw.set, s.deviceTime.set, s.comfort.set,
	} {
		if set {
			n++
		}
	}
	return n
}

// Correlator reassembles per-field MQTT fragments into whole readings. One
// session is open at a time. The device-time fragment closes it immediately;
// otherwise an expiry sweep closes it after the configured quiet period. All
// access is serialized under one mutex so exactly one flush path can consume
// a given session.
type Correlator struct {
	mu     sync.Mutex
	s      session
	seq    int64
	logger *slog.Logger
}

// NewCorrelator starts with an empty session. lastSeq seeds the reading
// sequence counter, normally MAX(sequence_number) from the store so numbering
// stays monotonic across restarts.
func NewCorrelator(lastSeq int64, logger *slog.Logger) *Correlator {
	return &Correlator{s: newSession(), seq: lastSeq, logger: logger}
}

// ApplyNumber records a numeric fragment. nil marks a failed sensor.
func (c *Correlator) ApplyNumber(field types.Field, v *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case types.FieldTemperature:
		c.s.temperature.apply(v)
	case types.FieldHumidity:
		c.s.humidity.apply(v)
	case types.FieldLightPercent:
		c.s.lightPct.apply(v)
	default:
		c.logger.Warn("numeric fragment for unexpected field", "field", field)
		return
	}
	c.touchLocked()
}

// ApplyInteger records an integer fragment. nil marks a failed sensor.
func (c *Correlator) ApplyInteger(field types.Field, v *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if field != types.FieldLightRaw {
		c.logger.Warn("integer fragment for unexpected field", "field", field)
		return
	}
	c.s.lightRaw.apply(v)
	c.touchLocked()
}

// ApplyText records a text fragment. The device-time fragment is the
// completeness signal: it closes the session and the assembled reading is
// returned with ok=true. Comfort fragments just fill their slot.
func (c *Correlator) ApplyText(field types.Field, v string) (types.Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case types.FieldComfort:
		c.s.comfort.set = true
		c.s.comfort.v = v
		c.touchLocked()
	case types.FieldDeviceTime:
		c.s.deviceTime.set = true
		c.s.deviceTime.v = v
		return c.flushLocked(FlushReady), true
	default:
		c.logger.Warn("text fragment for unexpected field", "field", field)
	}
	return types.Reading{}, false
}

// FlushExpired closes a stale session: one that holds at least one fragment
// and has seen none for timeout. With partial set the session is flushed as
// an incomplete reading, otherwise it is discarded. An empty or fresh
// session is left alone.
func (c *Correlator) FlushExpired(now time.Time, timeout time.Duration, partial bool) ExpiryResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.s.empty() {
		return ExpiryResult{Action: ExpiryNone}
	}
	age := now.Sub(c.s.lastUpdate)
	if age < timeout {
		return ExpiryResult{Action: ExpiryNone}
	}

	res := ExpiryResult{
		Session: c.s.id,
		Fields:  c.s.fieldCount(),
		Age:     age,
	}
	if !partial {
		c.logger.Warn("stale session discarded",
			"session", c.s.id, "fields", res.Fields, "age", age)
		metrics.SessionDiscarded()
		c.resetLocked()
		res.Action = ExpiryDiscarded
		return res
	}

	res.Action = ExpiryFlushed
	res.Reading = c.flushLocked(FlushTimeout)
	return res
}

// SessionID returns the id of the currently open session.
func (c *Correlator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.id
}

// Sequence returns the last assigned reading sequence number.
func (c *Correlator) Sequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *Correlator) touchLocked() {
	c.s.lastUpdate = time.Now()
	metrics.SetBufferFields(c.s.fieldCount())
}

func (c *Correlator) resetLocked() {
	c.s = newSession()
	metrics.SetBufferFields(0)
}

// flushLocked turns the open session into a Reading and opens a fresh one.
// Callers hold the mutex.
func (c *Correlator) flushLocked(reason FlushReason) types.Reading {
	c.seq++
	seq := c.seq

	deviceTime := PlaceholderDeviceTime
	if c.s.deviceTime.set {
		deviceTime = c.s.deviceTime.v
	}

	r := types.Reading{
		Time:         time.Now().UTC(),
		Temperature:  c.s.temperature.value(),
		Humidity:     c.s.humidity.value(),
		LightPercent: c.s.lightPct.value(),
		LightRaw:     c.s.lightRaw.value(),
		DeviceTime:   deviceTime,
		Sequence:     &seq,
	}

	if c.s.comfort.set {
		v := c.s.comfort.v
		r.ComfortLevel = &v
	} else if lvl := ClassifyComfort(r.Temperature, r.Humidity); lvl != "" {
		r.ComfortLevel = &lvl
	}

	for _, slot := range []struct {
		field  types.Field
		failed bool
	}{
		{types.FieldTemperature, c.s.temperature.failed},
		{types.FieldHumidity, c.s.humidity.failed},
		{types.FieldLightPercent, c.s.lightPct.failed},
		{types.FieldLightRaw, c.s.lightRaw.failed},
	} {
		if slot.failed {
			r.FailedSensors = append(r.FailedSensors, slot.field)
		}
	}

	c.logger.Debug("session flushed",
		"session", c.s.id,
		"reason", string(reason),
		"sequence", seq,
		"fields", c.s.fieldCount(),
	)

	c.resetLocked()
	metrics.FlushTriggered(string(reason))
	return r
}
