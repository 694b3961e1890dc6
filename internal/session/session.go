package session

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

var sessionSeq atomic.Uint64

// Session is one connected client as the hub sees it: an identity slot
// and an outbound queue. The transport owns the socket; it drains Out()
// from its writer goroutine and feeds inbound frames to Hub.HandleMessage.
type Session struct {
	id  uint64
	hub *Hub
	log *log.Logger

	out    chan []byte
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	osUsername string
	joined     bool
}

// Out is the outbound frame queue for the transport writer.
func (s *Session) Out() <-chan []byte { return s.out }

// Closed is signalled when the hub has dropped the session.
func (s *Session) Closed() <-chan struct{} { return s.closed }

func (s *Session) identity() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.osUsername, s.joined
}

func (s *Session) setIdentity(osUsername string) {
	s.mu.Lock()
	s.osUsername = osUsername
	s.joined = true
	s.mu.Unlock()
}

// send enqueues one frame without blocking. A full queue means the peer
// is not draining; the frame is dropped and the slowness logged.
func (s *Session) send(b []byte) {
	select {
	case <-s.closed:
	case s.out <- b:
	default:
		s.log.Printf("[session %d] send queue full, dropping frame", s.id)
	}
}

func (s *Session) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("[session %d] marshal: %v", s.id, err)
		return
	}
	s.send(b)
}

func (s *Session) close() {
	s.once.Do(func() { close(s.closed) })
}
