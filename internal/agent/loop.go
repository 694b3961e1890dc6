package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
)

// Run drives the agent at a fixed tick period until ctx is cancelled.
// Unexpected tick failures are logged and the loop pauses briefly before
// resuming instead of terminating.
func (a *Agent) Run(ctx context.Context, w World) {
	interval := time.Second / time.Duration(a.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Printf("agent %s started (%s personality)", a.displayName, a.personality)
	defer a.logger.Printf("agent %s stopped", a.displayName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.tick(ctx, w, interval.Seconds()); err != nil {
				a.logger.Printf("agent %s: tick: %v", a.displayName, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(tickFailureBackoff):
				}
			}
		}
	}
}

// tick is one full cycle: bookkeeping, mention response, ambient chat,
// movement, then the outbound position update.
func (a *Agent) tick(ctx context.Context, w World, dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	a.distanceTraveled += math.Abs(a.x - a.lastX)
	a.lastX = a.x

	responded := a.respondToMention(ctx, w)
	if !responded {
		a.maybeAmbientChat(ctx, w)
	}

	a.stepMovement(dt)
	a.publish()

	// Cancelled mid-tick: exit without sending a partial update.
	if ctx.Err() != nil {
		return nil
	}

	w.BroadcastEvent(protocol.PositionEventMsg{
		Type:        protocol.TypePositionUpdate,
		PlayerID:    a.id,
		Position:    protocol.Position{X: round1(a.x), Y: round1(a.y)},
		AnimationID: a.animation,
		FacingLeft:  a.facingLeft,
	})
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
