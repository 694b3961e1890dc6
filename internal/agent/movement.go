package agent

import (
	"math"
	"time"
)

// stepMovement advances the kinematic state by one fixed time step.
func (a *Agent) stepMovement(dt float64) {
	now := a.now()

	// A raised turning flag flips facing after a short, fixed duration.
	if a.isTurning && now.Sub(a.targetChangeTime) > turnDuration {
		a.isTurning = false
		a.facingLeft = !a.facingLeft
	}

	if now.Sub(a.targetChangeTime) > a.targetChangeInterval {
		a.chooseNewTarget()
	}

	if a.isIdle {
		if now.Sub(a.idleStart) > a.idleDuration {
			a.isIdle = false
			a.chooseNewTarget()
		} else {
			a.vx = moveToward(a.vx, 0, friction*dt)
		}
	} else {
		dist := a.currentTargetX - a.x
		if math.Abs(dist) > targetProximity {
			target := a.targetSpeed
			if dist > 0 {
				a.facingLeft = false
				a.movedLeft = false
			} else {
				target = -target
				a.facingLeft = true
				a.movedLeft = true
			}
			a.vx = moveToward(a.vx, target, accel*dt)
		} else {
			a.vx = moveToward(a.vx, 0, friction*dt)
		}
	}

	a.maybeJump(now, dt)

	// Vertical integration: gravity applies while airborne or rising.
	onGround := math.Abs(a.y-a.groundY) < groundEpsilon
	if !onGround || a.vy < 0 {
		a.vy += gravity * dt
	}
	a.x += a.vx * dt
	a.y += a.vy * dt

	a.x = clamp(a.x, SpriteHalfWidth, a.mapWidth-SpriteHalfWidth)

	if a.y > a.groundY {
		a.y = a.groundY
		a.vy = 0
		a.isJumping = false
		a.isFalling = false
	}

	a.updateAnimationState()
}

// chooseNewTarget either freezes in place for a short idle or picks a new
// horizontal target within the map margins, per the personality traits.
func (a *Agent) chooseNewTarget() {
	now := a.now()
	if a.rng.Float64() < a.pattern.idleFreq {
		a.isIdle = true
		a.idleStart = now
		a.idleDuration = durationBetween(a.rng, 500*time.Millisecond, 2*time.Second)
		a.currentTargetX = a.x
	} else {
		a.isIdle = false
		a.currentTargetX = targetMargin + a.rng.Float64()*(a.mapWidth-2*targetMargin)
		speedMult := a.pattern.speedMin + a.rng.Float64()*(a.pattern.speedMax-a.pattern.speedMin)
		a.targetSpeed = maxSpeed * speedMult
		if a.rng.Float64() < a.pattern.turnFreq {
			a.isTurning = true
		}
	}
	a.targetChangeTime = now
	a.targetChangeInterval = durationBetween(a.rng, 2*time.Second, 6*time.Second)
}

// maybeJump runs the jump decision: only when grounded and off cooldown,
// with boosted probability after a direction reversal or near the target.
func (a *Agent) maybeJump(now time.Time, dt float64) {
	onGround := math.Abs(a.y-a.groundY) < groundEpsilon
	if !onGround || now.Sub(a.lastJumpTime) <= jumpCooldown {
		return
	}

	chance := a.pattern.jumpFreq * dt * 80
	dist := a.currentTargetX - a.x
	directionChanged := (a.vx > 0 && a.movedLeft) || (a.vx < 0 && !a.movedLeft)

	switch {
	case directionChanged && a.rng.Float64() < chance*1.2:
		a.performJump(now)
	case math.Abs(dist) < nearTargetDist && a.rng.Float64() < chance*1.5:
		a.performJump(now)
	case a.rng.Float64() < chance:
		a.performJump(now)
	}
}

func (a *Agent) performJump(now time.Time) {
	a.vy = jumpVelocity * (0.8 + 0.2*a.rng.Float64())
	a.lastJumpTime = now
	a.jumpCount++
	a.jumpsSinceChat++
	a.isJumping = true
}

// updateAnimationState derives the animation tag from the kinematic state.
// Priority: jump > fall > run > turn_around > idle.
func (a *Agent) updateAnimationState() {
	onGround := math.Abs(a.y-a.groundY) < groundEpsilon
	switch {
	case !onGround && a.vy < 0:
		a.animation = "jump"
		a.isJumping, a.isFalling, a.isMoving = true, false, false
	case !onGround:
		a.animation = "fall"
		a.isJumping, a.isFalling, a.isMoving = false, true, false
	case math.Abs(a.vx) > runThreshold:
		a.animation = "run"
		a.isJumping, a.isFalling, a.isMoving = false, false, true
	case a.isTurning:
		a.animation = "turn_around"
		a.isJumping, a.isFalling, a.isMoving = false, false, false
	default:
		a.animation = "idle"
		a.isJumping, a.isFalling, a.isMoving = false, false, false
	}
}

// moveToward shifts current toward target by at most amount, without
// overshooting.
func moveToward(current, target, amount float64) float64 {
	if current < target {
		return math.Min(current+amount, target)
	}
	return math.Max(current-amount, target)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
