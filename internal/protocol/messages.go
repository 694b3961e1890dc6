package protocol

// Position is a point in map space. Y grows downward; the ground plane
// sits at the client-reported ground_y.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerInfo is the public-safe projection of a player (human or agent)
// used in rosters and join announcements.
type PlayerInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OSUsername string   `json:"os_username"`
	Position   Position `json:"position"`
	IsAI       bool     `json:"is_ai,omitempty"`
}

// JOIN (client -> server)
type JoinMsg struct {
	Type        string  `json:"type"`
	OSUsername  string  `json:"os_username"`
	DisplayName string  `json:"display_name"`
	GroundY     float64 `json:"ground_y"`
	MapWidth    float64 `json:"map_width"`
}

// POSITION_UPDATE (client -> server)
type PositionUpdateMsg struct {
	Type        string  `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	AnimationID string  `json:"animation_id"`
	FacingLeft  bool    `json:"facing_left"`
}

// CHAT_MESSAGE (client -> server)
type ChatMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// INIT (server -> client): join acknowledgement with the caller's own
// identity and spawn position.
type InitMsg struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Position    Position `json:"position"`
	IsAI        bool     `json:"is_ai"`
}

// PLAYER_LIST (server -> client): full roster snapshot.
type PlayerListMsg struct {
	Type    string       `json:"type"`
	Players []PlayerInfo `json:"players"`
}

// PLAYER_JOINED (server -> client)
type PlayerJoinedMsg struct {
	Type   string     `json:"type"`
	Player PlayerInfo `json:"player"`
}

// PLAYER_LEFT (server -> client)
type PlayerLeftMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// POSITION_UPDATE (server -> client)
type PositionEventMsg struct {
	Type        string   `json:"type"`
	PlayerID    string   `json:"player_id"`
	Position    Position `json:"position"`
	AnimationID string   `json:"animation_id"`
	FacingLeft  bool     `json:"facing_left"`
}

// CHAT_MESSAGE (server -> client). Timestamp is unix seconds.
type ChatEventMsg struct {
	Type      string  `json:"type"`
	Sender    string  `json:"sender"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// ERROR (server -> client): validation failures surfaced to the offending
// client. The connection stays open so the client can retry.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
