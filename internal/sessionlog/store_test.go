package sessionlog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/logging"
	"github.com/Shaktiprasadram22/Elearning-Platform/pkg/types"
)

func newTestLogStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "logs.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestOpenCloseRoundTrip(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Second)

	id, err := s.Open(ctx, "stu1", "ins1", "course1", start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entries, err := s.ByStudent(ctx, "stu1")
	if err != nil {
		t.Fatalf("by student: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].EndTime != nil {
		t.Error("end time should be unset on an open entry")
	}
	if string(entries[0].Transcript) != "[]" {
		t.Errorf("transcript = %s, want empty array", entries[0].Transcript)
	}

	end := start.Add(20 * time.Minute)
	transcript := json.RawMessage(`[{"sender":"Asha","message":"hi"}]`)
	if err := s.Close(ctx, id, end, transcript); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, _ = s.ByStudent(ctx, "stu1")
	if entries[0].EndTime == nil || !entries[0].EndTime.Equal(end) {
		t.Errorf("end time = %v, want %v", entries[0].EndTime, end)
	}
	if string(entries[0].Transcript) != string(transcript) {
		t.Errorf("transcript = %s", entries[0].Transcript)
	}
}

func TestCloseIsLastWriteWins(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()
	start := time.Now().UTC()

	id, err := s.Open(ctx, "stu1", "ins1", "course1", start)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	first := start.Add(10 * time.Minute)
	second := start.Add(12 * time.Minute)
	if err := s.Close(ctx, id, first, nil); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(ctx, id, second, json.RawMessage(`[{"m":"late"}]`)); err != nil {
		t.Fatalf("second close: %v", err)
	}

	entries, _ := s.ByStudent(ctx, "stu1")
	if !entries[0].EndTime.Equal(second) {
		t.Errorf("end time = %v, want last write %v", entries[0].EndTime, second)
	}
}

func TestQueriesNewestFirst(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if _, err := s.Open(ctx, "stu1", "ins1", "course1", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		// created_at drives the ordering.
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := s.ByInstructor(ctx, "ins1")
	if err != nil {
		t.Fatalf("by instructor: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Errorf("entries not newest first at index %d", i)
		}
	}

	byCourse, err := s.ByCourse(ctx, "course1")
	if err != nil {
		t.Fatalf("by course: %v", err)
	}
	if len(byCourse) != 3 {
		t.Errorf("course entries = %d, want 3", len(byCourse))
	}
}

// TestShutdownUnblocksInFlightWrites races writers against Shutdown and
// verifies no caller is left waiting on an orphaned write op.
func TestShutdownUnblocksInFlightWrites(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "logs.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := s.Open(ctx, "stu1", "ins1", "course1", time.Now()); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writers still blocked after shutdown")
	}
}

func TestWritesAfterShutdownFail(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "logs.db"), logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Errorf("repeat shutdown: %v", err)
	}

	if _, err := s.Open(context.Background(), "stu1", "ins1", "course1", time.Now()); !errors.Is(err, types.ErrStoreUnavailable) {
		t.Errorf("open after shutdown error = %v, want ErrStoreUnavailable", err)
	}
}
