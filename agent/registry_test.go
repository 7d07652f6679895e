package agent

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestRegistryDedup(t *testing.T) {
	r := NewRegistry()

	if !r.TryInsert(KindPush, 7, "u1") {
		t.Fatal("first insert rejected")
	}
	if r.TryInsert(KindPush, 7, "u1") {
		t.Fatal("duplicate insert accepted")
	}
	if total, sum := r.counts(KindPush); total != 1 || sum != 1 {
		t.Fatalf("counters after duplicate: total %d, sum %d", total, sum)
	}

	r.Remove(KindPush, 7, "u1")
	if total, sum := r.counts(KindPush); total != 0 || sum != 0 {
		t.Fatalf("counters after remove: total %d, sum %d", total, sum)
	}
	if !r.TryInsert(KindPush, 7, "u1") {
		t.Fatal("re-insert after remove rejected")
	}
}

func TestRegistryOnlyPushTracksUsers(t *testing.T) {
	r := NewRegistry()
	r.TryInsert(KindClone, 1, "u1")
	if total, sum := r.counts(KindClone); total != 0 || sum != 0 {
		t.Fatalf("clone tracked users: total %d, sum %d", total, sum)
	}
	r.MarkRunning(KindClone, "u1")
	if running, _, _ := r.PushShares(KindClone, "u1", 2); running != 0 {
		t.Fatalf("clone tracked running count: %d", running)
	}
}

func TestRegistryCountersSaturate(t *testing.T) {
	r := NewRegistry()
	// A remove that was never inserted must not drive counters negative.
	r.Remove(KindPush, 42, "ghost")
	if total, sum := r.counts(KindPush); total != 0 || sum != 0 {
		t.Fatalf("counters went negative: total %d, sum %d", total, sum)
	}

	r.TryInsert(KindPush, 1, "u1")
	r.Remove(KindPush, 1, "u1")
	r.Remove(KindPush, 1, "u1")
	if total, sum := r.counts(KindPush); total != 0 || sum != 0 {
		t.Fatalf("double remove broke counters: total %d, sum %d", total, sum)
	}
}

func TestRegistryShares(t *testing.T) {
	r := NewRegistry()
	r.TryInsert(KindPush, 1, "a")
	r.TryInsert(KindPush, 2, "a")
	r.TryInsert(KindPush, 3, "a")
	r.TryInsert(KindPush, 4, "b")

	running, demand, supply := r.PushShares(KindPush, "a", 2)
	if running != 0 || demand != 0.75 || supply != 0.5 {
		t.Fatalf("shares for a: running %d, demand %v, supply %v", running, demand, supply)
	}

	r.MarkRunning(KindPush, "a")
	running, demand, supply = r.PushShares(KindPush, "a", 2)
	if running != 1 || demand != 0.75 || supply != 1.0 {
		t.Fatalf("shares for a after mark: running %d, demand %v, supply %v", running, demand, supply)
	}
	if running, _, _ := r.PushShares(KindPush, "b", 2); running != 0 {
		t.Fatalf("b should have nothing running, got %d", running)
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.TryInsert(KindPush, 1, "a")
	r.TryInsert(KindCreateTablet, 2, "")

	snap := r.SnapshotSignatures()
	if len(snap[KindPush]) != 1 || len(snap[KindCreateTablet]) != 1 {
		t.Fatalf("unexpected snapshot: %s", spew.Sdump(snap))
	}

	// Mutating the snapshot must not touch the registry.
	snap[KindPush] = append(snap[KindPush], 99)
	if got := r.SnapshotSignatures(); len(got[KindPush]) != 1 {
		t.Fatalf("snapshot aliases registry state: %s", spew.Sdump(got))
	}
}
