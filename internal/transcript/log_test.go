package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/assessly-ai/assessly/pkg/types"
)

func TestAppend_RecordsLinesInOrder(t *testing.T) {
	t.Parallel()

	started := time.Unix(1000, 0)
	log := New(started)

	if !log.Append(types.RoleAI, "Tell me about VPC peering.", started.Add(2*time.Second)) {
		t.Fatal("Append returned false for a valid line")
	}
	if !log.Append(types.RoleUser, "Peering connects two VPCs privately.", started.Add(9*time.Second)) {
		t.Fatal("Append returned false for a valid line")
	}

	lines := log.Lines()
	if len(lines) != 2 {
		t.Fatalf("Lines() returned %d lines; want 2", len(lines))
	}
	if lines[0].Role != types.RoleAI || lines[0].Timestamp != 2*time.Second {
		t.Errorf("first line = %+v; want AI at 2s", lines[0])
	}
	if lines[1].Role != types.RoleUser || lines[1].Timestamp != 9*time.Second {
		t.Errorf("second line = %+v; want User at 9s", lines[1])
	}
}

func TestAppend_TrimsAndSkipsBlankLines(t *testing.T) {
	t.Parallel()

	started := time.Now()
	log := New(started)

	if log.Append(types.RoleUser, "   \n\t", started) {
		t.Error("Append accepted a whitespace-only line")
	}
	if !log.Append(types.RoleUser, "  yes  ", started) {
		t.Fatal("Append rejected a valid line")
	}
	if got := log.Lines()[0].Text; got != "yes" {
		t.Errorf("stored text = %q; want %q", got, "yes")
	}
}

func TestLines_ReturnsCopy(t *testing.T) {
	t.Parallel()

	log := New(time.Now())
	log.Append(types.RoleAI, "original", time.Now())

	snapshot := log.Lines()
	snapshot[0].Text = "mutated"

	if got := log.Lines()[0].Text; got != "original" {
		t.Errorf("log text = %q after mutating snapshot; want %q", got, "original")
	}
}

func TestFreeze_RejectsFurtherAppends(t *testing.T) {
	t.Parallel()

	started := time.Now()
	log := New(started)
	log.Append(types.RoleAI, "first", started)

	final := log.Freeze()
	if len(final) != 1 {
		t.Fatalf("Freeze returned %d lines; want 1", len(final))
	}
	if !log.Frozen() {
		t.Error("Frozen() = false after Freeze")
	}

	if log.Append(types.RoleUser, "too late", started) {
		t.Error("Append accepted a line after Freeze")
	}
	if log.Len() != 1 {
		t.Errorf("Len() = %d after rejected append; want 1", log.Len())
	}

	// Idempotent.
	if again := log.Freeze(); len(again) != 1 {
		t.Errorf("second Freeze returned %d lines; want 1", len(again))
	}
}

func TestSubscribe_ReceivesAppendedLines(t *testing.T) {
	t.Parallel()

	started := time.Now()
	log := New(started)

	sub := log.Subscribe()
	log.Append(types.RoleAI, "Can you hear me?", started.Add(time.Second))

	select {
	case line := <-sub:
		if line.Text != "Can you hear me?" {
			t.Errorf("received %q; want %q", line.Text, "Can you hear me?")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for subscribed line")
	}
}

func TestSubscribe_ClosedOnFreeze(t *testing.T) {
	t.Parallel()

	log := New(time.Now())
	sub := log.Subscribe()

	log.Freeze()

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("received a line from a frozen log; want closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after Freeze")
	}
}

func TestSubscribe_AfterFreezeReturnsClosedChannel(t *testing.T) {
	t.Parallel()

	log := New(time.Now())
	log.Freeze()

	sub := log.Subscribe()
	if _, ok := <-sub; ok {
		t.Error("subscription to a frozen log delivered a line")
	}
}

func TestAppend_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	started := time.Now()
	log := New(started)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Go(func() {
			for j := 0; j < perWriter; j++ {
				log.Append(types.RoleUser, "line", started)
			}
		})
	}
	wg.Wait()

	if got := log.Len(); got != writers*perWriter {
		t.Errorf("Len() = %d; want %d", got, writers*perWriter)
	}
}
