package registry

import (
	"context"
	"testing"
	"time"

	"github.com/typeloop/typerace-backend/internal/race"
	"github.com/typeloop/typerace-backend/internal/room"
)

func testOpts() Options {
	return Options{
		SweepInterval:  25 * time.Millisecond,
		Retention:      50 * time.Millisecond,
		CountdownDelay: 10 * time.Millisecond,
		TickPeriod:     10 * time.Millisecond,
		Seed:           1,
	}
}

func ensure(t *testing.T, g *Registry, key string, cfg Config) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	g.Inbox() <- Ensure{Key: key, Config: cfg, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out ensuring room %q", key)
		return nil
	}
}

func get(t *testing.T, g *Registry, key string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	g.Inbox() <- Get{Key: key, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out getting room %q", key)
		return nil
	}
}

func viewOf(t *testing.T, rm *room.Room) room.View {
	t.Helper()
	reply := make(chan room.View, 1)
	rm.Inbox() <- room.GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for room view")
		return room.View{}
	}
}

func TestRegistry_Ensure_IdempotentPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	rm1 := ensure(t, g, "r1", Config{})
	rm2 := ensure(t, g, "r1", Config{ComputerMode: true, NumBots: 5})
	rm3 := get(t, g, "r1")

	if rm1 == nil || rm1 != rm2 || rm1 != rm3 {
		t.Fatalf("expected same room pointer for same key")
	}

	// Config of the second call was ignored: no bots were added.
	v := viewOf(t, rm1)
	if len(v.Snapshot.Participants) != 0 {
		t.Fatalf("second Ensure config leaked into existing room: %+v", v.Snapshot.Participants)
	}

	g.Inbox() <- Shutdown{}
}

func TestRegistry_ComputerMode_CreatesEasyBots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	rm := ensure(t, g, "r1", Config{ComputerMode: true, NumBots: 2, Difficulty: "easy"})
	v := viewOf(t, rm)

	snap := v.Snapshot
	if !snap.ComputerMode {
		t.Fatalf("race not flagged computer mode")
	}
	if len(snap.Participants) != 2 {
		t.Fatalf("want 2 bots, got %d", len(snap.Participants))
	}
	wantIDs := map[string]bool{"r1-bot-1": true, "r1-bot-2": true}
	for _, p := range snap.Participants {
		if !p.IsBot {
			t.Fatalf("expected bot participant, got %+v", p)
		}
		if !wantIDs[p.ID] {
			t.Fatalf("unexpected bot id %q", p.ID)
		}
		if p.WPM < 20 || p.WPM > 40 {
			t.Fatalf("easy bot wpm out of [20,40]: %d", p.WPM)
		}
		if p.Accuracy != 100 {
			t.Fatalf("new bot accuracy should be 100, got %v", p.Accuracy)
		}
	}

	g.Inbox() <- Shutdown{}
}

func TestRegistry_ComputerMode_DefaultsToThreeBots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	rm := ensure(t, g, "r1", Config{ComputerMode: true})
	v := viewOf(t, rm)
	if len(v.Snapshot.Participants) != 3 {
		t.Fatalf("want default 3 bots, got %d", len(v.Snapshot.Participants))
	}

	g.Inbox() <- Shutdown{}
}

func TestRegistry_EmptyRoomIsRemovedImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sweep disabled-ish: long interval so only the empty-room path can
	// remove the room.
	opts := testOpts()
	opts.SweepInterval = time.Hour
	g := New(ctx, opts)

	rm := ensure(t, g, "r1", Config{ComputerMode: true, NumBots: 1})
	out := make(chan race.Snapshot, 8)
	rm.Inbox() <- room.Join{ID: "c1", Name: "alice", Outbox: out}
	rm.Inbox() <- room.Leave{ID: "c1"}

	deadline := time.After(500 * time.Millisecond)
	for get(t, g, "r1") != nil {
		select {
		case <-deadline:
			t.Fatalf("room not removed after last human left")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistry_SweepEvictsFinishedRaceAfterRetention(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	rm := ensure(t, g, "r1", Config{})
	out := make(chan race.Snapshot, 64)
	rm.Inbox() <- room.Join{ID: "c1", Name: "alice", Outbox: out}
	rm.Inbox() <- room.Start{}

	// Drive the solo race to finished.
	deadline := time.After(time.Second)
	for {
		v := viewOf(t, rm)
		if v.Snapshot.Status == race.StatusRacing {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("race never started, status=%v", v.Snapshot.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	rm.Inbox() <- room.Finish{ID: "c1"}

	deadline = time.After(time.Second)
	for get(t, g, "r1") != nil {
		select {
		case <-deadline:
			t.Fatalf("sweep never evicted the finished race")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistry_SweepEvictsBotOnlyRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	// Provisioned with bots but no human ever joins: zero humans makes
	// the room destroyable regardless of bot state, so the sweep must
	// not let the bot participants keep it alive.
	ensure(t, g, "r1", Config{ComputerMode: true, NumBots: 2})

	deadline := time.After(time.Second)
	for get(t, g, "r1") != nil {
		select {
		case <-deadline:
			t.Fatalf("sweep never evicted the bot-only room")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistry_LeaveDuringFrequentSweeps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Aggressive sweeping so room-loop emptiness reports race against
	// sweep GetState round-trips.
	opts := testOpts()
	opts.SweepInterval = time.Millisecond
	g := New(ctx, opts)

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, k := range keys {
		rm := ensure(t, g, k, Config{ComputerMode: true, NumBots: 2})
		out := make(chan race.Snapshot, 8)
		rm.Inbox() <- room.Join{ID: "c-" + k, Name: "x", Outbox: out}
		rm.Inbox() <- room.Leave{ID: "c-" + k}
	}

	deadline := time.After(2 * time.Second)
	for _, k := range keys {
		for get(t, g, k) != nil {
			select {
			case <-deadline:
				t.Fatalf("room %q never removed during sweep churn", k)
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
}

func TestRegistry_SweepEvictsNeverJoinedRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(ctx, testOpts())

	// Provisioned (e.g. via POST /rooms) but nobody ever connected.
	ensure(t, g, "r1", Config{})

	deadline := time.After(time.Second)
	for get(t, g, "r1") != nil {
		select {
		case <-deadline:
			t.Fatalf("sweep never evicted the empty room")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
