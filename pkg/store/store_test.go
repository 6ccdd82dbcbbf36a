package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

func testLog(n int) *model.EventLog {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	log := &model.EventLog{Columns: []string{"case_id", "activity", "timestamp"}}
	for i := 0; i < n; i++ {
		log.Events = append(log.Events, model.Event{
			Row:       i + 1,
			CaseID:    "C1",
			Activity:  "Step",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
	}
	return log
}

func TestMemory_CurrentBeforeReplace(t *testing.T) {
	_, err := NewMemory().Current(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Expected ErrNoSnapshot, got %v", err)
	}
	if pmerrors.KindOf(err) != pmerrors.KindNotFound {
		t.Errorf("Expected NotFoundError, got %q", pmerrors.KindOf(err))
	}
}

func TestMemory_Replace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := NewSnapshot("sample", testLog(3))
	if err := m.Replace(ctx, first); err != nil {
		t.Fatal(err)
	}
	held, _ := m.Current(ctx)

	second := NewSnapshot("upload.csv", testLog(5))
	if err := m.Replace(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := m.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != second.ID || got.Info().Rows != 5 {
		t.Errorf("Current = %+v", got.Info())
	}
	// Readers holding the old snapshot keep a consistent view
	if held.ID != first.ID || held.Log.Len() != 3 {
		t.Errorf("Held snapshot changed: %+v", held.Info())
	}
}

func TestMemory_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Replace(ctx, NewSnapshot("a", testLog(2)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					m.Replace(ctx, NewSnapshot("b", testLog(j%4+1)))
					continue
				}
				s, err := m.Current(ctx)
				if err != nil || s.Log.Len() != len(s.Log.Events) {
					t.Errorf("Inconsistent snapshot: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestSnapshot_IDsAreUnique(t *testing.T) {
	a := NewSnapshot("x", testLog(1))
	b := NewSnapshot("x", testLog(1))
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs not unique: %q %q", a.ID, b.ID)
	}
}

func TestEncodeDecode(t *testing.T) {
	orig := NewSnapshot("s3://logs/orders.csv", testLog(4))
	orig.Log.Columns = append(orig.Log.Columns, "resource")

	data, err := Encode(orig)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.ID != orig.ID || got.Source != orig.Source || !got.LoadedAt.Equal(orig.LoadedAt) {
		t.Errorf("Metadata mismatch: %+v vs %+v", got.Info(), orig.Info())
	}
	if len(got.Log.Columns) != 4 || got.Log.Len() != 4 {
		t.Fatalf("Log mismatch: %+v", got.Log)
	}
	ev := got.Log.Events[3]
	if ev.Row != 4 || ev.CaseID != "C1" || !ev.Timestamp.Equal(orig.Log.Events[3].Timestamp) {
		t.Errorf("Event mismatch: %+v", ev)
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Errorf("Decoded timestamp not UTC: %v", ev.Timestamp.Location())
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1}); !pmerrors.IsCode(err, pmerrors.CodeStoreFailed) {
		t.Errorf("Expected E301, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("Default backend = %T, want *Memory", s)
	}

	if _, err := Open(context.Background(), Config{Backend: "etcd"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	cfg := DefaultRedisConfig("127.0.0.1:1")
	cfg.Timeout = 200 * time.Millisecond

	if _, err := NewRedis(context.Background(), cfg); !pmerrors.IsCode(err, pmerrors.CodeStoreFailed) {
		t.Errorf("Expected E301, got %v", err)
	}
}
