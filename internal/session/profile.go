package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
)

// Profile is the identity record for one client identity, keyed by the
// stable os_username. Human profiles survive reconnects and restarts;
// agent profiles exist only while their agent is spawned.
type Profile struct {
	UUID        string            `json:"uuid"`
	DisplayName string            `json:"display_name"`
	OSUsername  string            `json:"os_username"`
	Position    protocol.Position `json:"position"`
	GroundY     float64           `json:"ground_y"`
	MapWidth    float64           `json:"map_width"`
	IsAI        bool              `json:"is_ai,omitempty"`
}

func (p *Profile) info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:         p.UUID,
		Name:       p.DisplayName,
		OSUsername: p.OSUsername,
		Position:   p.Position,
		IsAI:       p.IsAI,
	}
}

// ProfileStore persists human profiles. Called on join and display-name
// change, never per tick.
type ProfileStore interface {
	Load() (map[string]Profile, error)
	Save(map[string]Profile) error
}

// ChatRecorder receives every broadcast chat line for the transcript.
type ChatRecorder interface {
	Record(sender, message string, ts time.Time) error
}

// profileUUID derives the stable player id from the client identity.
func profileUUID(osUsername string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(osUsername)).String()
}

// isFullyMasked reports whether filtering obscured every character.
func isFullyMasked(name string) bool {
	if name == "" {
		return false
	}
	return strings.Trim(name, "*") == ""
}
