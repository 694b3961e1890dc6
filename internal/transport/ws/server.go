// Package ws is the WebSocket edge: it upgrades connections, pumps frames
// between the socket and the session hub, and routes every termination
// through the same hub cleanup path.
package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/session"
)

const writeTimeout = 5 * time.Second

type Server struct {
	hub *session.Hub
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *session.Hub, logger *log.Logger) *Server {
	return &Server{
		hub: h,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // behind the tunnel
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.hub.NewSession()
		defer s.hub.Disconnect(sess)

		// Writer goroutine. A write failure or hub-side close tears the
		// socket down, which also unblocks the reader below.
		go func() {
			for {
				select {
				case <-sess.Closed():
					_ = conn.Close()
					return
				case b, ok := <-sess.Out():
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop. Players may idle between frames, so no read deadline
		// is set; dead peers surface as write failures instead.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.hub.HandleMessage(sess, msg)
		}
	}
}
