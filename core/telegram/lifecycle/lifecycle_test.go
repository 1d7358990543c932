package lifecycle

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
)

type fakeTransport struct {
	mu      sync.Mutex
	edits   []string
	deletes []int
	editErr error
	delErr  error
}

func (f *fakeTransport) Send(chatID int64, text string, rows ...[]sender.Button) (int, error) {
	return 1, nil
}

func (f *fakeTransport) Edit(chatID int64, messageID int, text string, rows ...[]sender.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return f.editErr
}

func (f *fakeTransport) Delete(chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return f.delErr
}

func (f *fakeTransport) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

func (f *fakeTransport) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestScheduleDeleteWaitsThenDeletes(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr)
	var waited time.Duration
	deleted := make(chan struct{})
	m.sleep = func(d time.Duration) { waited = d }

	m.ScheduleDelete(9, 42, 5*time.Second)
	go func() {
		waitFor(t, func() bool { return tr.deleteCount() == 1 })
		close(deleted)
	}()
	<-deleted

	if waited != 5*time.Second {
		t.Fatalf("waited %v, want 5s", waited)
	}
}

func TestScheduleDeleteSwallowsFailure(t *testing.T) {
	tr := &fakeTransport{delErr: errors.New("message to delete not found")}
	m := NewManager(tr)
	m.sleep = func(time.Duration) {}

	// must not panic or propagate even though the delete fails
	m.ScheduleDelete(9, 42, time.Millisecond)
	waitFor(t, func() bool { return tr.deleteCount() == 1 })
}

func TestSpinnerRotatesUntilDone(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr)
	m.SpinnerInterval = time.Millisecond

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		m.Spinner(9, 42, "working", done)
		close(stopped)
	}()

	waitFor(t, func() bool { return tr.editCount() >= 4 })
	close(done)
	<-stopped

	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, text := range tr.edits[:4] {
		want := "working" + spinnerFrames[i%len(spinnerFrames)]
		if text != want {
			t.Fatalf("edit %d = %q, want %q", i, text, want)
		}
	}
}

func TestSpinnerWritesNoFrameAfterDone(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr)
	m.SpinnerInterval = time.Millisecond

	// done is already closed and a tick is pending: even if the tick is
	// drained first, no frame may be written over the final result edit.
	done := make(chan struct{})
	close(done)
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 50; i++ {
		m.Spinner(9, 42, "working", done)
	}

	if n := tr.editCount(); n != 0 {
		t.Fatalf("spinner wrote %d frame(s) after done", n)
	}
}

func TestSpinnerSurvivesEditFailures(t *testing.T) {
	tr := &fakeTransport{editErr: errors.New("message is not modified")}
	m := NewManager(tr)
	m.SpinnerInterval = time.Millisecond

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		m.Spinner(9, 42, "working", done)
		close(stopped)
	}()

	waitFor(t, func() bool { return tr.editCount() >= 3 })
	close(done)
	<-stopped

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.edits) < 3 {
		t.Fatalf("spinner stopped after failures: %d edits", len(tr.edits))
	}
	if !strings.HasPrefix(tr.edits[0], "working") {
		t.Fatalf("unexpected edit text %q", tr.edits[0])
	}
}
