package agent

import (
	"context"
	"testing"
	"time"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
)

func TestRun_BroadcastsPositionUpdates(t *testing.T) {
	a := New(Config{
		DisplayName: "Grokzilla",
		Personality: "explorer",
		X:           400,
		GroundY:     300,
		MapWidth:    800,
		TickRateHz:  200,
		Gen:         &fakeGen{err: errGenDown},
		Logger:      testLogger(),
	})
	w := &fakeWorld{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, w)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		w.mu.Lock()
		n := len(w.events)
		w.mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no position updates after 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancellation")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ev := range w.events {
		msg, ok := ev.(protocol.PositionEventMsg)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if msg.Type != protocol.TypePositionUpdate || msg.PlayerID != a.ID() {
			t.Fatalf("unexpected event %+v", msg)
		}
		if msg.Position.X < SpriteHalfWidth || msg.Position.X > 800-SpriteHalfWidth {
			t.Fatalf("broadcast position out of bounds: %+v", msg.Position)
		}
	}
}

func TestRun_StopsPromptlyWhenIdle(t *testing.T) {
	a := New(Config{
		DisplayName: "QuantumGPT",
		Personality: "friendly",
		X:           100,
		GroundY:     300,
		MapWidth:    800,
		TickRateHz:  100,
		Gen:         &fakeGen{err: errGenDown},
		Logger:      testLogger(),
	})
	w := &fakeWorld{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, w)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("loop did not exit after cancel")
	}
}
