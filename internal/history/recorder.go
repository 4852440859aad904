package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/intercom-core/internal/intercom"
)

// MeasurementState is the metrics measurement written for each state change.
const MeasurementState = "intercom_state"

// MetricsWriter receives one point per recorded state change.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// Logger is the logging surface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder persists the states observed on a subscription.
//
// A Recorder is driven by a single Run call; the counters may be read
// concurrently.
type Recorder struct {
	deviceID string
	repo     Repository
	metrics  MetricsWriter
	logger   Logger

	mu       sync.Mutex
	previous intercom.State

	recorded atomic.Uint64
	missed   atomic.Uint64
	failed   atomic.Uint64
}

// NewRecorder creates a recorder for deviceID. initial is the engine state
// at subscription time and becomes Previous of the first entry.
// metrics may be nil.
func NewRecorder(deviceID string, repo Repository, metrics MetricsWriter, initial intercom.State) *Recorder {
	return &Recorder{
		deviceID: deviceID,
		repo:     repo,
		metrics:  metrics,
		logger:   noopLogger{},
		previous: initial,
	}
}

// SetLogger sets the logger. A nil logger disables logging.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = logger
}

// Run records states from sub until ctx is done or sub is closed.
// It returns nil when sub is closed and drained, otherwise ctx.Err().
func (r *Recorder) Run(ctx context.Context, sub *intercom.Subscription[intercom.State]) error {
	var seenMissed uint64
	for {
		state, err := sub.Recv(ctx)
		if errors.Is(err, intercom.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		if total := sub.Missed(); total > seenMissed {
			gap := total - seenMissed
			seenMissed = total
			r.missed.Add(gap)
			r.logger.Warn("state changes missed", "device_id", r.deviceID, "count", gap)
		}

		r.record(ctx, state, seenMissed)
	}
}

func (r *Recorder) record(ctx context.Context, state intercom.State, missedTotal uint64) {
	r.mu.Lock()
	previous := r.previous
	r.previous = state
	r.mu.Unlock()

	entry := NewEntry(r.deviceID, state, previous)
	if err := r.repo.Record(ctx, entry); err != nil {
		r.failed.Add(1)
		r.logger.Error("recording state change failed", "device_id", r.deviceID, "state", state, "error", err)
	} else {
		r.recorded.Add(1)
		r.logger.Debug("state change recorded", "device_id", r.deviceID, "state", state, "previous", previous)
	}

	if r.metrics != nil {
		r.metrics.WritePoint(MeasurementState,
			map[string]string{
				"device_id": r.deviceID,
				"state":     string(state),
			},
			map[string]any{
				"previous": string(previous),
				"missed":   int64(missedTotal), //nolint:gosec // counter never approaches MaxInt64
			})
	}
}

// Recorded returns how many entries were stored.
func (r *Recorder) Recorded() uint64 { return r.recorded.Load() }

// Missed returns how many state changes were dropped before the recorder saw them.
func (r *Recorder) Missed() uint64 { return r.missed.Load() }

// Failed returns how many entries the repository rejected.
func (r *Recorder) Failed() uint64 { return r.failed.Load() }

// Last returns the most recently observed state.
func (r *Recorder) Last() intercom.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previous
}
