// Package agent implements the autonomous players: simulated platformer
// physics, a movement state machine, and chat driven by a text-generation
// backend with deterministic fallbacks.
package agent

import (
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/textgen"
)

// Physics constants. These match the human player physics on the client.
const (
	gravity      = 600.0
	jumpVelocity = -350.0
	maxSpeed     = 200.0
	accel        = 800.0
	friction     = 1000.0

	// SpriteHalfWidth bounds the reachable x range: an agent's position is
	// clamped to [SpriteHalfWidth, mapWidth-SpriteHalfWidth] every tick.
	SpriteHalfWidth = 25.0

	groundEpsilon   = 1.0
	runThreshold    = 10.0
	targetProximity = 20.0
	nearTargetDist  = 50.0
	targetMargin    = SpriteHalfWidth + 50

	jumpCooldown = 3 * time.Second
	turnDuration = 500 * time.Millisecond
)

// Chat constants.
const (
	maxRecentMessages  = 10
	mentionWindow      = 10 * time.Second
	mentionReplyWindow = 5 * time.Second
	mentionMaxLen      = 120
	ambientMaxLen      = 100
	ambientChanceScale = 0.015

	tickFailureBackoff = time.Second
)

// ChatEvent is one observed chat line. Values are immutable once appended
// to an agent's recent-message buffer.
type ChatEvent struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// World is the registry surface an agent needs: read-only peer snapshots
// for chat context and broadcast fan-out for its own events.
type World interface {
	Snapshot() []protocol.PlayerInfo
	BroadcastEvent(v any)
	BroadcastChat(sender, message string)
}

type Config struct {
	ID          string // generated when empty
	DisplayName string
	Personality string

	X        float64
	GroundY  float64
	MapWidth float64

	TickRateHz int
	Gen        textgen.Generator
	Logger     *log.Logger

	// Test seams; zero values use real time and a time-seeded source.
	Now  func() time.Time
	Rand *rand.Rand
}

type Agent struct {
	id          string
	displayName string
	osUsername  string
	personality string
	kind        aiKind
	pattern     movementPattern
	variants    []*regexp.Regexp

	gen      textgen.Generator
	logger   *log.Logger
	rng      *rand.Rand
	now      func() time.Time
	tickRate int

	groundY  float64
	mapWidth float64

	// Kinematic and decision state, owned by the update loop. Nothing
	// below is touched from other goroutines.
	x, y       float64
	vx, vy     float64
	facingLeft bool
	movedLeft  bool
	animation  string
	isJumping  bool
	isMoving   bool
	isFalling  bool
	isTurning  bool

	currentTargetX       float64
	targetSpeed          float64
	targetChangeTime     time.Time
	targetChangeInterval time.Duration
	isIdle               bool
	idleStart            time.Time
	idleDuration         time.Duration

	lastJumpTime     time.Time
	jumpCount        int
	jumpsSinceChat   int
	distanceTraveled float64
	lastX            float64

	socialTendency   float64
	chatCooldown     time.Duration
	lastChatTime     time.Time
	lastMentionReply time.Time

	// Recent-message buffer: written by the broadcast-chat path from any
	// connection goroutine, read and pruned by this agent's loop.
	chatMu sync.Mutex
	recent []ChatEvent

	// Public snapshot for rosters, refreshed once per tick.
	pubMu sync.Mutex
	pub   protocol.PlayerInfo
}

func New(cfg Config) *Agent {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	tickRate := cfg.TickRateHz
	if tickRate <= 0 {
		tickRate = 60
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	id := cfg.ID
	if id == "" {
		id = fmt.Sprintf("ai_%d_%04d", now().Unix(), 1000+rng.Intn(9000))
	}

	kind := kindForName(cfg.DisplayName)
	a := &Agent{
		id:          id,
		displayName: cfg.DisplayName,
		osUsername:  "AI_" + cfg.DisplayName,
		personality: cfg.Personality,
		kind:        kind,
		pattern:     patternFor(cfg.Personality),

		gen:      cfg.Gen,
		logger:   logger,
		rng:      rng,
		now:      now,
		tickRate: tickRate,

		groundY:  cfg.GroundY,
		mapWidth: cfg.MapWidth,

		x:         cfg.X,
		y:         cfg.GroundY,
		animation: "idle",

		currentTargetX:       cfg.X,
		targetChangeTime:     now(),
		targetChangeInterval: durationBetween(rng, 5*time.Second, 15*time.Second),
		lastX:                cfg.X,

		socialTendency: 0.01 + rng.Float64()*0.09,
		chatCooldown:   durationBetween(rng, 8*time.Second, 20*time.Second),
	}
	for _, v := range nameVariants(cfg.DisplayName, kind) {
		a.variants = append(a.variants, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(v)+`\b`))
	}
	a.publish()
	return a
}

func (a *Agent) ID() string          { return a.id }
func (a *Agent) DisplayName() string { return a.displayName }
func (a *Agent) OSUsername() string  { return a.osUsername }
func (a *Agent) Personality() string { return a.personality }

// Info returns the public-safe projection for rosters and join events.
// Safe to call from any goroutine.
func (a *Agent) Info() protocol.PlayerInfo {
	a.pubMu.Lock()
	defer a.pubMu.Unlock()
	return a.pub
}

func (a *Agent) publish() {
	a.pubMu.Lock()
	a.pub = protocol.PlayerInfo{
		ID:         a.id,
		Name:       a.displayName,
		OSUsername: a.osUsername,
		Position:   protocol.Position{X: a.x, Y: a.y},
		IsAI:       true,
	}
	a.pubMu.Unlock()
}

// AddChatMessage appends a broadcast chat line to the recent-message
// buffer for mention detection. The oldest entry is dropped beyond the
// buffer bound.
func (a *Agent) AddChatMessage(sender, text string) {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	a.recent = append(a.recent, ChatEvent{Sender: sender, Text: text, Timestamp: a.now()})
	if len(a.recent) > maxRecentMessages {
		a.recent = a.recent[len(a.recent)-maxRecentMessages:]
	}
}

// recentSnapshot copies the buffer so the loop can iterate without holding
// the lock across generator calls.
func (a *Agent) recentSnapshot() []ChatEvent {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	out := make([]ChatEvent, len(a.recent))
	copy(out, a.recent)
	return out
}

// removeChatMessage drops the triggering message so a later tick does not
// respond to it again.
func (a *Agent) removeChatMessage(ev ChatEvent) {
	a.chatMu.Lock()
	defer a.chatMu.Unlock()
	for i, m := range a.recent {
		if m == ev {
			a.recent = append(a.recent[:i], a.recent[i+1:]...)
			return
		}
	}
}

func durationBetween(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rng.Float64()*float64(hi-lo))
}
