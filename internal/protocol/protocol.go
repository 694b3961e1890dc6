package protocol

import "encoding/json"

// Message types (client -> server).
const (
	TypeJoin           = "join"
	TypePositionUpdate = "position_update"
	TypeChatMessage    = "chat_message"
)

// Message types (server -> client). Position and chat types are shared
// with the client->server direction.
const (
	TypeInit         = "init"
	TypePlayerList   = "player_list"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypeError        = "error"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
