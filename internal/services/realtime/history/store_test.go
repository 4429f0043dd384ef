package history

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/partyline/internal/platform/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeSink struct {
	mu      sync.Mutex
	loaded  []Message
	loadErr error
	saveErr error
	saves   [][]Message
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSink) Load(context.Context) ([]Message, error) {
	return f.loaded, f.loadErr
}

func (f *fakeSink) Save(_ context.Context, messages []Message) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, append([]Message(nil), messages...))
	return nil
}

func (f *fakeSink) lastSave() ([]Message, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil, 0
	}
	return f.saves[len(f.saves)-1], len(f.saves)
}

func msg(i int) Message {
	return Message{Username: "alice", Message: fmt.Sprintf("m%d", i), Timestamp: "12:00:00"}
}

func TestAppendEvictsOldestBeyondCapacity(t *testing.T) {
	store := NewStore(nil)
	for i := 1; i <= Capacity+1; i++ {
		store.Append(msg(i))
	}

	got := store.Snapshot()
	if len(got) != Capacity {
		t.Fatalf("len = %d, want %d", len(got), Capacity)
	}
	if got[0] != msg(2) {
		t.Fatalf("first = %+v, want m2", got[0])
	}
	for i, m := range got {
		if m != msg(i+2) {
			t.Fatalf("position %d = %+v, want m%d", i, m, i+2)
		}
	}
}

func TestAppendNeverExceedsCapacity(t *testing.T) {
	store := NewStore(nil)
	for i := 0; i < 3*Capacity+7; i++ {
		store.Append(msg(i))
		if store.Len() > Capacity {
			t.Fatalf("len %d exceeds capacity after %d appends", store.Len(), i+1)
		}
	}
}

func TestSnapshotIsCopyAndNeverNil(t *testing.T) {
	store := NewStore(nil)
	if snap := store.Snapshot(); snap == nil || len(snap) != 0 {
		t.Fatalf("empty snapshot = %#v", snap)
	}
	store.Append(msg(1))
	snap := store.Snapshot()
	snap[0].Message = "changed"
	if store.Snapshot()[0] != msg(1) {
		t.Fatal("store mutated through snapshot")
	}
}

func TestRestoreLoadsAndTrims(t *testing.T) {
	var loaded []Message
	for i := 0; i < Capacity+5; i++ {
		loaded = append(loaded, msg(i))
	}
	store := NewStore(&fakeSink{loaded: loaded})
	if err := store.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := store.Snapshot()
	if !reflect.DeepEqual(got, loaded[5:]) {
		t.Fatalf("restored %d messages, first %+v", len(got), got[0])
	}
	if store.Pending() {
		t.Fatal("restored state should not be pending")
	}
}

func TestRestoreFailureLeavesEmptyHistory(t *testing.T) {
	corrupt := apperrors.Wrap(apperrors.CodeHistoryCorrupt, "decode", errors.New("bad json"))
	store := NewStore(&fakeSink{loadErr: corrupt})
	store.Append(msg(1))

	err := store.Restore(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeHistoryCorrupt) {
		t.Fatalf("err = %v, want HISTORY_CORRUPT", err)
	}
	if store.Len() != 0 {
		t.Fatalf("len = %d, want 0", store.Len())
	}

	store = NewStore(&fakeSink{loadErr: errors.New("connection refused")})
	err = store.Restore(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeHistoryUnavailable) {
		t.Fatalf("err = %v, want HISTORY_UNAVAILABLE", err)
	}
}

func TestFlushSavesOnlyWhenChanged(t *testing.T) {
	sink := &fakeSink{}
	store := NewStore(sink)
	ctx := context.Background()

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, n := sink.lastSave(); n != 0 {
		t.Fatalf("expected no save, got %d", n)
	}

	store.Append(msg(1))
	store.Append(msg(2))
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	last, n := sink.lastSave()
	if n != 1 {
		t.Fatalf("saves = %d, want 1", n)
	}
	if !reflect.DeepEqual(last, []Message{msg(1), msg(2)}) {
		t.Fatalf("saved %+v", last)
	}
}

func TestFlushFailureKeepsMemoryAndRetries(t *testing.T) {
	sink := &fakeSink{saveErr: errors.New("disk full")}
	store := NewStore(sink)
	store.Append(msg(1))

	err := store.Flush(context.Background())
	if !apperrors.HasCode(err, apperrors.CodeHistoryPersist) {
		t.Fatalf("err = %v, want HISTORY_PERSIST", err)
	}
	if store.Len() != 1 {
		t.Fatal("memory rolled back after persist failure")
	}
	if !store.Pending() {
		t.Fatal("expected pending state after failure")
	}

	sink.mu.Lock()
	sink.saveErr = nil
	sink.mu.Unlock()
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if store.Pending() {
		t.Fatal("expected clean state after retry")
	}
}

func TestAppendDoesNotWaitForSlowSink(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	store := NewStore(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.Start(ctx)

	store.Append(msg(1))
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("persister never called Save")
	}

	appended := make(chan struct{})
	go func() {
		for i := 2; i <= 20; i++ {
			store.Append(msg(i))
		}
		close(appended)
	}()
	select {
	case <-appended:
	case <-time.After(2 * time.Second):
		t.Fatal("append blocked behind a slow save")
	}

	close(sink.gate)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	if err := store.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}

	last, n := sink.lastSave()
	if len(last) != 20 || last[19] != msg(20) {
		t.Fatalf("final save has %d messages", len(last))
	}
	if n > 3 {
		t.Fatalf("expected coalesced saves, got %d", n)
	}
}

func TestCloseWithoutStartFlushes(t *testing.T) {
	sink := &fakeSink{}
	store := NewStore(sink)
	store.Append(msg(1))
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, n := sink.lastSave(); n != 1 {
		t.Fatalf("saves = %d, want 1", n)
	}
}

func TestFlushRecordsPersistSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	store := NewStore(&fakeSink{}, WithTracer(provider.Tracer("test")))
	store.Append(msg(1))
	store.Append(msg(2))
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "history.persist" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	found := false
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "history.length" && attr.Value.AsInt64() == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing history.length attribute: %v", spans[0].Attributes())
	}
}
