// Package session owns the connection registry, the broadcast fan-out and
// the join/leave lifecycle, including spawning and despawning the agent
// roster as human sessions come and go.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/agent"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/chatfilter"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/textgen"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/tuning"
)

type agentHandle struct {
	ag     *agent.Agent
	cancel context.CancelFunc
	done   chan struct{}
}

// Hub is the registry every other component talks through. All mutable
// collections live here and are reached only via Hub methods; sessions and
// agents never share state directly.
//
// Lock order: lifecycleMu before mu. lifecycleMu serializes spawn/despawn
// decisions and is held while awaiting agent loop termination; mu guards the
// data maps and is never held across a channel wait.
type Hub struct {
	log   *log.Logger
	tune  tuning.Tuning
	gen   textgen.Generator
	store ProfileStore
	chat  ChatRecorder

	now func() time.Time

	lifecycleMu sync.Mutex

	mu       sync.Mutex
	sessions []*Session
	profiles map[string]*Profile // keyed by os_username
	agents   []*agentHandle
}

func NewHub(logger *log.Logger, tune tuning.Tuning, gen textgen.Generator, store ProfileStore, chat ChatRecorder) *Hub {
	h := &Hub{
		log:      logger,
		tune:     tune,
		gen:      gen,
		store:    store,
		chat:     chat,
		now:      time.Now,
		profiles: make(map[string]*Profile),
	}
	if store != nil {
		saved, err := store.Load()
		if err != nil {
			logger.Printf("[hub] profile load: %v", err)
		} else {
			for os, p := range saved {
				cp := p
				h.profiles[os] = &cp
			}
			logger.Printf("[hub] loaded %d saved players", len(saved))
		}
	}
	return h
}

// NewSession registers a fresh connection. The caller owns the socket and
// must call Disconnect exactly once when it dies.
func (h *Hub) NewSession() *Session {
	s := &Session{
		id:     sessionSeq.Add(1),
		hub:    h,
		log:    h.log,
		out:    make(chan []byte, h.tune.SendQueue),
		closed: make(chan struct{}),
	}
	h.mu.Lock()
	h.sessions = append(h.sessions, s)
	h.mu.Unlock()
	h.log.Printf("[hub] session %d connected", s.id)
	return s
}

// broadcast fans one envelope out to every session except exclude. A slow
// or dead recipient drops the frame for itself only; delivery to the rest
// is unaffected.
func (h *Hub) broadcast(v any, exclude *Session) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("[hub] broadcast marshal: %v", err)
		return
	}
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()
	for _, s := range targets {
		s.send(b)
	}
}

// Snapshot lists everyone currently visible, joined humans in connection
// order followed by agents in roster order.
func (h *Hub) Snapshot() []protocol.PlayerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(h.sessions)+len(h.agents))
	for _, s := range h.sessions {
		os, joined := s.identity()
		if !joined {
			continue
		}
		if p, ok := h.profiles[os]; ok {
			out = append(out, p.info())
		}
	}
	for _, hd := range h.agents {
		out = append(out, hd.ag.Info())
	}
	return out
}

// BroadcastEvent sends one envelope to every session.
func (h *Hub) BroadcastEvent(v any) {
	h.broadcast(v, nil)
}

// BroadcastChat runs one chat line through the shared pipeline: filter,
// feed every agent's mention buffer, record the transcript, fan out.
func (h *Hub) BroadcastChat(sender, message string) {
	filtered := chatfilter.Filter(message)
	now := h.now()

	h.mu.Lock()
	handles := make([]*agentHandle, len(h.agents))
	copy(handles, h.agents)
	h.mu.Unlock()
	for _, hd := range handles {
		hd.ag.AddChatMessage(sender, filtered)
	}

	if h.chat != nil {
		if err := h.chat.Record(sender, filtered, now); err != nil {
			h.log.Printf("[hub] chat record: %v", err)
		}
	}

	h.broadcast(protocol.ChatEventMsg{
		Type:      protocol.TypeChatMessage,
		Sender:    sender,
		Message:   filtered,
		Timestamp: float64(now.UnixNano()) / 1e9,
	}, nil)
}

func (h *Hub) HumanCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.humanCountLocked()
}

func (h *Hub) humanCountLocked() int {
	n := 0
	for _, s := range h.sessions {
		if _, joined := s.identity(); joined {
			n++
		}
	}
	return n
}

func (h *Hub) AgentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.agents)
}

// persist writes the human profiles out. Never called with mu held.
func (h *Hub) persist() {
	if h.store == nil {
		return
	}
	h.mu.Lock()
	snap := make(map[string]Profile, len(h.profiles))
	for os, p := range h.profiles {
		if p.IsAI {
			continue
		}
		snap[os] = *p
	}
	h.mu.Unlock()
	if err := h.store.Save(snap); err != nil {
		h.log.Printf("[hub] profile save: %v", err)
	}
}

// Shutdown stops every agent loop and releases all sessions.
func (h *Hub) Shutdown() {
	h.lifecycleMu.Lock()
	h.despawnAgentsLocked()
	h.lifecycleMu.Unlock()

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = nil
	h.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
	h.persist()
}
