// Package notify carries workflow events from the core services to their
// delivery channels. The core is agnostic to delivery: it calls Notify and
// moves on; loss or retry is the channel's concern, never the caller's.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds emitted by the station and journey services.
const (
	KindQueueAdmitted        = "queue_admitted"
	KindQueueRemoved         = "queue_removed"
	KindAlertRaised          = "alert_raised"
	KindAlertResolved        = "alert_resolved"
	KindStationStatusChanged = "station_status_changed"
	KindJourneyPhaseChanged  = "journey_phase_changed"
	KindJourneyCancelled     = "journey_cancelled"
)

// Event is one workflow notification.
type Event struct {
	Kind      string    `json:"kind"`
	StationID string    `json:"station_id,omitempty"`
	PatientID string    `json:"patient_id,omitempty"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a Notifier backed by the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.log.Info().
		Str("kind", event.Kind).
		Str("station_id", event.StationID).
		Str("patient_id", event.PatientID).
		Str("severity", event.Severity).
		Msg(event.Message)
	return nil
}

// Multi fans an event out to several notifiers. Delivery failures in one
// channel do not stop the others; the first error is returned.
type Multi struct {
	notifiers []Notifier
}

// NewMulti returns a Notifier wrapping all given notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify implements Notifier.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder captures events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByKind returns recorded events of one kind.
func (r *Recorder) ByKind(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
