package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/metrics"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// Persister is the slice of the telemetry service the bridge writes through.
type Persister interface {
	PersistReading(r types.Reading)
	RecordEvent(category, description string)
	AggregateStatistics(window time.Duration)
	PruneEvents(olderThan time.Duration)
}

const (
	flushQueueSize       = 64
	expirySweepPeriod    = time.Second
	retentionSweepPeriod = time.Hour
)

type jobKind int

const (
	jobReading jobKind = iota
	jobEvent
)

// job is one unit of deferred persistence work. Events raised on the
// dispatch path travel through the same queue as readings, so dispatch never
// waits on storage.
type job struct {
	kind        jobKind
	reading     types.Reading
	category    string
	description string
}

// Bridge wires the supervisor, the correlator and the persistence layer
// together and owns the background loops: persist worker, expiry sweep,
// statistics aggregation and event retention.
type Bridge struct {
	cfg    config.Config
	sup    *Supervisor
	corr   *Correlator
	sink   Persister
	logger *slog.Logger

	queue   chan job
	stopCh  chan struct{}
	drainCh chan struct{}
}

func New(cfg config.Config, sup *Supervisor, corr *Correlator, sink Persister, logger *slog.Logger) *Bridge {
	b := &Bridge{
		cfg:     cfg,
		sup:     sup,
		corr:    corr,
		sink:    sink,
		logger:  logger,
		queue:   make(chan job, flushQueueSize),
		stopCh:  make(chan struct{}),
		drainCh: make(chan struct{}),
	}
	if sup != nil {
		sup.OnFragment = b.handleFragment
		sup.OnCommand = b.handleCommand
		sup.OnStateChange = b.handleStateChange
	}
	return b
}

// Run starts the background loops and blocks until ctx is canceled, then
// shuts down in order: broker intake first, loops next, queue drain last.
// In-flight flushes are persisted before it returns; fragments still sitting
// in a non-ready session are discarded.
func (b *Bridge) Run(ctx context.Context) {
	b.sink.RecordEvent(types.CategoryBridge, "bridge started")

	var loops sync.WaitGroup

	loops.Add(1)
	go func() {
		defer loops.Done()
		b.expiryLoop()
	}()

	if b.cfg.StatsInterval > 0 {
		loops.Add(1)
		go func() {
			defer loops.Done()
			b.statsLoop()
		}()
	}

	if b.cfg.EventRetention > 0 {
		loops.Add(1)
		go func() {
			defer loops.Done()
			b.retentionLoop()
		}()
	}

	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		b.persistWorker()
	}()

	<-ctx.Done()

	b.sup.Disconnect()
	close(b.stopCh)
	loops.Wait()
	close(b.drainCh)
	worker.Wait()

	b.sink.RecordEvent(types.CategoryBridge, "bridge stopped")
	b.logger.Info("bridge stopped")
}

// handleFragment decodes one inbound payload and applies it to the open
// session. It runs on the paho dispatch goroutine: nothing here may block on
// storage.
func (b *Bridge) handleFragment(field types.Field, payload string) {
	metrics.FragmentReceived(string(field))

	switch field {
	case types.FieldTemperature, types.FieldHumidity, types.FieldLightPercent:
		v, err := DecodeFloat(payload)
		if err != nil {
			b.dropMalformed(field, payload, err)
			return
		}
		b.corr.ApplyNumber(field, v)

	case types.FieldLightRaw:
		v, err := DecodeInt(payload)
		if err != nil {
			b.dropMalformed(field, payload, err)
			return
		}
		b.corr.ApplyInteger(field, v)

	case types.FieldDeviceTime:
		token := strings.TrimSpace(payload)
		if token == "" {
			b.dropMalformed(field, payload, fmt.Errorf("%w: empty device time", ErrMalformedValue))
			return
		}
		if reading, ok := b.corr.ApplyText(field, token); ok {
			b.enqueue(job{kind: jobReading, reading: reading})
		}

	case types.FieldComfort:
		if v := strings.TrimSpace(payload); v != "" {
			b.corr.ApplyText(field, v)
		}

	case types.FieldSystemEvent:
		b.recordSystemEvent(payload)

	default:
		b.logger.Warn("fragment for unrouted field", "field", field)
	}
}

// handleCommand records an inbound remote command. The bridge routes command
// tokens without interpreting them; the station is the actuator.
func (b *Bridge) handleCommand(payload string) {
	command := strings.TrimSpace(payload)
	b.logger.Info("remote command observed", "command", command)
	b.enqueue(job{
		kind:        jobEvent,
		category:    types.CategoryCommand,
		description: fmt.Sprintf("remote command %q observed", command),
	})
}

func (b *Bridge) handleStateChange(state ConnState, detail string) {
	switch state {
	case StateSubscribed:
		b.enqueue(job{
			kind:        jobEvent,
			category:    types.CategoryBridge,
			description: "connected to broker and subscribed",
		})
	case StateDisconnected:
		desc := "connection to broker lost"
		if detail != "" {
			desc += ": " + detail
		}
		b.enqueue(job{kind: jobEvent, category: types.CategoryBridge, description: desc})
	}
}

// recordSystemEvent stores a station self-report. The station encodes these
// as "TYPE:description"; bare payloads fall under SYSTEM.
func (b *Bridge) recordSystemEvent(payload string) {
	category := types.CategorySystem
	description := strings.TrimSpace(payload)
	if description == "" {
		return
	}
	if i := strings.Index(description, ":"); i > 0 {
		category = strings.TrimSpace(description[:i])
		description = strings.TrimSpace(description[i+1:])
	}
	b.enqueue(job{kind: jobEvent, category: category, description: description})
}

func (b *Bridge) dropMalformed(field types.Field, payload string, err error) {
	metrics.FragmentMalformed()
	b.logger.Warn("fragment dropped", "field", field, "error", err)
	b.enqueue(job{
		kind:        jobEvent,
		category:    types.CategoryError,
		description: fmt.Sprintf("malformed %s fragment %q dropped", field, truncate(payload, 64)),
	})
}

func (b *Bridge) enqueue(j job) {
	select {
	case b.queue <- j:
	default:
		metrics.QueueDropped()
		b.logger.Error("flush queue full, job dropped", "kind", int(j.kind))
	}
}

// persistWorker serializes all storage writes on one goroutine. After
// drainCh closes it consumes whatever is queued and exits.
func (b *Bridge) persistWorker() {
	for {
		select {
		case j := <-b.queue:
			b.process(j)
		case <-b.drainCh:
			for {
				select {
				case j := <-b.queue:
					b.process(j)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) process(j job) {
	switch j.kind {
	case jobReading:
		b.sink.PersistReading(j.reading)
	case jobEvent:
		b.sink.RecordEvent(j.category, j.description)
	}
}

func (b *Bridge) expiryLoop() {
	ticker := time.NewTicker(expirySweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			b.sweep(now)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bridge) sweep(now time.Time) {
	res := b.corr.FlushExpired(now, b.cfg.BufferTimeout, b.cfg.PartialFlush)
	switch res.Action {
	case ExpiryFlushed:
		b.logger.Info("stale session flushed",
			"session", res.Session, "fields", res.Fields, "age", res.Age.Round(time.Second))
		b.enqueue(job{kind: jobReading, reading: res.Reading})
	case ExpiryDiscarded:
		b.enqueue(job{
			kind:     jobEvent,
			category: types.CategoryError,
			description: fmt.Sprintf("session %s discarded: %d field(s) stale for %s",
				res.Session, res.Fields, res.Age.Round(time.Second)),
		})
	}
}

func (b *Bridge) statsLoop() {
	ticker := time.NewTicker(b.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sink.AggregateStatistics(b.cfg.StatsInterval)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bridge) retentionLoop() {
	ticker := time.NewTicker(retentionSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sink.PruneEvents(b.cfg.EventRetention)
		case <-b.stopCh:
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
