// internal/stats/stats.go
//
// Play statistics.
// Records are written fire-and-forget: the Recorder buffers them on a
// channel and a single worker hands them to a Sink. Results never flow back
// into a round; a full buffer drops the record and logs it.

package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Record is one finished (or client-reported) round.
type Record struct {
	SessionKey string    `json:"sessionKey" bson:"sessionKey"`
	Mode       string    `json:"mode" bson:"mode"`
	PlayerID   string    `json:"playerId,omitempty" bson:"playerId,omitempty"`
	Attempts   int       `json:"attempts" bson:"attempts"`
	Guesses    []int64   `json:"guesses" bson:"guesses"`
	Found      bool      `json:"found" bson:"found"`
	Info       string    `json:"info,omitempty" bson:"info,omitempty"`
	Verified   bool      `json:"verified" bson:"verified"` // attempts and outcome came from the server session
	At         time.Time `json:"at" bson:"at"`
}

// Sink persists records.
type Sink interface {
	Save(ctx context.Context, r Record) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }

// DefaultBuffer is the Recorder queue size used when none is given.
const DefaultBuffer = 256

// Recorder queues records for a background writer.
type Recorder struct {
	sink    Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Record
	done   chan struct{}

	dropped atomic.Int64
}

// NewRecorder starts the worker. Call Close to drain and stop it.
func NewRecorder(sink Sink, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		sink:    sink,
		timeout: 5 * time.Second,
		ch:      make(chan Record, buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record enqueues rec without blocking. It reports false when the record
// was dropped.
func (r *Recorder) Record(rec Record) bool {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- rec:
		return true
	default:
		n := r.dropped.Add(1)
		log.Warn().Str("mode", rec.Mode).Str("key", rec.SessionKey).Int64("dropped", n).Msg("stats buffer full, record dropped")
		return false
	}
}

// Dropped returns how many records were discarded so far.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting records and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.sink.Save(ctx, rec); err != nil {
			log.Error().Err(err).Str("mode", rec.Mode).Str("key", rec.SessionKey).Msg("stats save")
		}
		cancel()
	}
}
