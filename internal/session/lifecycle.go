package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"unicode/utf8"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/agent"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/chatfilter"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
)

// HandleMessage dispatches one inbound frame from the transport. Frames
// that do not decode are discarded without closing the connection.
func (h *Hub) HandleMessage(s *Session, raw []byte) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		h.log.Printf("[hub] session %d: discarding malformed frame: %v", s.id, err)
		return
	}
	switch base.Type {
	case protocol.TypeJoin:
		h.handleJoin(s, raw)
	case protocol.TypePositionUpdate:
		h.handlePosition(s, raw)
	case protocol.TypeChatMessage:
		h.handleChat(s, raw)
	}
}

func (h *Hub) handleJoin(s *Session, raw []byte) {
	var msg protocol.JoinMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	osUsername := msg.OSUsername
	if osUsername == "" {
		s.sendJSON(protocol.ErrorMsg{Type: protocol.TypeError, Message: "os_username required"})
		return
	}
	name := msg.DisplayName
	if name == "" {
		name = osUsername
	}
	if n := utf8.RuneCountInString(name); n > h.tune.MaxNameLength {
		s.sendJSON(protocol.ErrorMsg{
			Type:    protocol.TypeError,
			Message: fmt.Sprintf("Display name cannot exceed %d characters. Your name was %d characters.", h.tune.MaxNameLength, n),
		})
		return
	}
	if chatfilter.IsProfane(name) {
		filtered := chatfilter.Filter(name)
		if filtered == name {
			s.sendJSON(protocol.ErrorMsg{
				Type:    protocol.TypeError,
				Message: "Display name contains inappropriate language. Please choose another name.",
			})
			return
		}
		name = filtered
		if isFullyMasked(name) {
			name = placeholderName(osUsername, h.tune.MaxNameLength)
		}
	}

	groundY := msg.GroundY
	if groundY <= 0 {
		groundY = h.tune.DefaultGroundY
	}
	mapWidth := msg.MapWidth
	if mapWidth <= 0 {
		mapWidth = h.tune.DefaultMapWidth
	}

	// Spawn decisions for the whole join are serialized so two first-human
	// joins cannot race a double roster spawn.
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	h.mu.Lock()
	p := h.getOrCreateProfileLocked(osUsername, name)
	p.GroundY = groundY
	p.MapWidth = mapWidth
	p.Position.Y = groundY
	s.setIdentity(osUsername)
	initMsg := protocol.InitMsg{
		Type:        protocol.TypeInit,
		ID:          p.UUID,
		DisplayName: p.DisplayName,
		Position:    p.Position,
		IsAI:        false,
	}
	listMsg := protocol.PlayerListMsg{Type: protocol.TypePlayerList, Players: h.snapshotLocked()}
	humans := h.humanCountLocked()
	noAgents := len(h.agents) == 0
	h.mu.Unlock()

	h.persist()
	s.sendJSON(initMsg)
	s.sendJSON(listMsg)
	h.log.Printf("[hub] %s joined as %q", osUsername, p.DisplayName)

	if humans == 1 && noAgents {
		h.log.Printf("[hub] first human joined, spawning %d agents", len(h.tune.Agents))
		h.spawnAgentsLocked(groundY, mapWidth)
	}
}

func (h *Hub) handlePosition(s *Session, raw []byte) {
	osUsername, joined := s.identity()
	if !joined {
		return
	}
	var msg protocol.PositionUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	h.mu.Lock()
	p, ok := h.profiles[osUsername]
	if !ok {
		h.mu.Unlock()
		return
	}
	p.Position.X = msg.X
	p.Position.Y = msg.Y
	id, pos := p.UUID, p.Position
	h.mu.Unlock()

	anim := msg.AnimationID
	if anim == "" {
		anim = "idle"
	}
	h.broadcast(protocol.PositionEventMsg{
		Type:        protocol.TypePositionUpdate,
		PlayerID:    id,
		Position:    pos,
		AnimationID: anim,
		FacingLeft:  msg.FacingLeft,
	}, s)
}

func (h *Hub) handleChat(s *Session, raw []byte) {
	osUsername, joined := s.identity()
	if !joined {
		return
	}
	var msg protocol.ChatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	text := msg.Message
	if chatfilter.IsProfane(text) {
		filtered := chatfilter.Filter(text)
		if filtered == text {
			s.sendJSON(protocol.ErrorMsg{
				Type:    protocol.TypeError,
				Message: "Message contains inappropriate language and cannot be sent.",
			})
			return
		}
		text = filtered
	}

	h.mu.Lock()
	p, ok := h.profiles[osUsername]
	if !ok {
		h.mu.Unlock()
		return
	}
	sender := p.DisplayName
	h.mu.Unlock()

	h.BroadcastChat(sender, text)
}

// Disconnect tears one session down. Graceful closes and abrupt drops both
// land here; the transport calls it exactly once per connection.
func (h *Hub) Disconnect(s *Session) {
	s.close()

	h.mu.Lock()
	for i, cur := range h.sessions {
		if cur == s {
			h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
			break
		}
	}
	osUsername, joined := s.identity()
	var name string
	if p, ok := h.profiles[osUsername]; ok {
		name = p.DisplayName
	}
	h.mu.Unlock()

	if !joined {
		h.log.Printf("[hub] session %d disconnected before join", s.id)
		return
	}
	h.log.Printf("[hub] %s left", name)

	h.lifecycleMu.Lock()
	h.mu.Lock()
	humans := h.humanCountLocked()
	h.mu.Unlock()
	if humans == 0 {
		h.despawnAgentsLocked()
	}
	h.lifecycleMu.Unlock()

	h.persist()
	h.broadcast(protocol.PlayerListMsg{Type: protocol.TypePlayerList, Players: h.Snapshot()}, nil)
}

// getOrCreateProfileLocked requires h.mu. Display-name changes stick to the
// stored profile; agents never pass through here.
func (h *Hub) getOrCreateProfileLocked(osUsername, displayName string) *Profile {
	if p, ok := h.profiles[osUsername]; ok {
		if p.DisplayName != displayName {
			h.log.Printf("[hub] updated display_name for %s: %q", osUsername, displayName)
			p.DisplayName = displayName
		}
		return p
	}
	p := &Profile{
		UUID:        profileUUID(osUsername),
		DisplayName: displayName,
		OSUsername:  osUsername,
		Position:    protocol.Position{X: h.tune.DefaultMapWidth / 2, Y: h.tune.DefaultGroundY},
		GroundY:     h.tune.DefaultGroundY,
		MapWidth:    h.tune.DefaultMapWidth,
	}
	h.profiles[osUsername] = p
	return p
}

func placeholderName(osUsername string, maxLen int) string {
	short := osUsername
	if len(short) > 8 {
		short = short[:8]
	}
	name := "Player_" + short
	if utf8.RuneCountInString(name) > maxLen {
		name = string([]rune(name)[:maxLen])
	}
	return name
}

// spawnAgentsLocked starts the configured roster in order. Requires
// lifecycleMu; h.mu must not be held.
func (h *Hub) spawnAgentsLocked(groundY, mapWidth float64) {
	for _, spec := range h.tune.Agents {
		ag := agent.New(agent.Config{
			DisplayName: spec.DisplayName,
			Personality: spec.Personality,
			X:           100 + rand.Float64()*(mapWidth-200),
			GroundY:     groundY,
			MapWidth:    mapWidth,
			TickRateHz:  h.tune.TickRateHz,
			Gen:         h.gen,
			Logger:      h.log,
		})
		ctx, cancel := context.WithCancel(context.Background())
		hd := &agentHandle{ag: ag, cancel: cancel, done: make(chan struct{})}

		h.mu.Lock()
		h.agents = append(h.agents, hd)
		h.mu.Unlock()

		go func() {
			defer close(hd.done)
			ag.Run(ctx, h)
		}()

		h.broadcast(protocol.PlayerJoinedMsg{Type: protocol.TypePlayerJoined, Player: ag.Info()}, nil)
		h.log.Printf("[hub] spawned %s (%s personality)", ag.DisplayName(), ag.Personality())
	}
}

// despawnAgentsLocked cancels every agent loop and waits for each to stop
// before clearing the registry, so no cancelled loop can race the empty
// state. Requires lifecycleMu; h.mu must not be held.
func (h *Hub) despawnAgentsLocked() {
	h.mu.Lock()
	handles := make([]*agentHandle, len(h.agents))
	copy(handles, h.agents)
	h.mu.Unlock()
	if len(handles) == 0 {
		return
	}

	h.log.Printf("[hub] despawning all %d agents", len(handles))
	for _, hd := range handles {
		hd.cancel()
	}
	for _, hd := range handles {
		<-hd.done
	}

	h.mu.Lock()
	h.agents = nil
	h.mu.Unlock()

	for _, hd := range handles {
		h.broadcast(protocol.PlayerLeftMsg{Type: protocol.TypePlayerLeft, PlayerID: hd.ag.ID()}, nil)
	}
	h.log.Printf("[hub] all agents despawned")
}
