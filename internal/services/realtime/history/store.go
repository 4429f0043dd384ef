package history

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	platformotel "github.com/louisbranch/partyline/internal/platform/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Store.
type Option func(*Store)

// WithTracer overrides the tracer used for persist spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// Store is the in-memory chat log. Memory is authoritative; the sink only
// ever receives copies.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	version   uint64
	persisted uint64

	sink   Sink
	tracer trace.Tracer

	// saveMu keeps at most one Save in flight.
	saveMu sync.Mutex

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewStore returns an empty store backed by sink. A nil sink keeps history
// in memory only.
func NewStore(sink Sink, opts ...Option) *Store {
	s := &Store{
		sink:   sink,
		tracer: platformotel.Tracer("partyline/history"),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore replaces the in-memory history with what the sink holds. On any
// load failure the history is left empty and the error is returned for the
// caller to log; it is never fatal.
func (s *Store) Restore(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	loaded, err := s.sink.Load(ctx)
	if err != nil {
		s.replace(nil)
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			err = apperrors.Wrap(apperrors.CodeHistoryUnavailable, "load history", err)
		}
		return err
	}
	s.replace(Trim(loaded))
	return nil
}

func (s *Store) replace(messages []Message) {
	s.mu.Lock()
	s.messages = append([]Message(nil), messages...)
	s.version++
	s.persisted = s.version
	s.mu.Unlock()
}

// Append adds msg at the tail, evicting the oldest entry beyond Capacity,
// and schedules a persist.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if len(s.messages) > Capacity {
		s.messages = append(s.messages[:0:0], s.messages[len(s.messages)-Capacity:]...)
	}
	s.version++
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current history, oldest first. It is never
// nil.
func (s *Store) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of retained messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Start runs the background persister until ctx ends or Close is called.
// Appends made while a save is running coalesce into one follow-up save.
func (s *Store) Start(ctx context.Context) {
	if s.started.CompareAndSwap(false, true) {
		go s.run(ctx)
	}
}

func (s *Store) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.kick:
			if err := s.Flush(ctx); err != nil {
				log.Printf("history: persist failed code=%s err=%v", apperrors.CodeOf(err), err)
			}
		}
	}
}

// Close stops the persister and writes any unsaved state, bounded by ctx.
func (s *Store) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Flush(ctx)
}

// Flush saves the current snapshot if it changed since the last successful
// save. A failed save leaves memory untouched and is retried on the next
// append or flush.
func (s *Store) Flush(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.version == s.persisted {
		s.mu.Unlock()
		return nil
	}
	version := s.version
	snapshot := make([]Message, len(s.messages))
	copy(snapshot, s.messages)
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "history.persist",
		trace.WithAttributes(attribute.Int("history.length", len(snapshot))),
	)
	defer span.End()

	if err := s.sink.Save(ctx, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist history")
		if apperrors.HasCode(err, apperrors.CodeHistoryPersist) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeHistoryPersist, "persist history", err)
	}

	s.mu.Lock()
	if version > s.persisted {
		s.persisted = version
	}
	s.mu.Unlock()
	return nil
}

// Pending reports whether there are appends not yet saved.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink != nil && s.version != s.persisted
}
