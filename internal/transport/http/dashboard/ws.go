package dashboardhttp

import (
	"net/http"
	"time"

	"salesboard/internal/logger"
	"salesboard/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS pushes the current chart on connect and after every pipeline change.
// Slow clients miss intermediate updates rather than block the pipeline, and
// never see a version older than one already written.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed ip=%s err=%v", c.ClientIP(), err)
		return
	}
	send := make(chan pipeline.Snapshot, sendBuffer)
	send <- s.pipe.Snapshot()
	unsubscribe := s.pipe.Subscribe(func(snap pipeline.Snapshot) {
		for {
			select {
			case send <- snap:
				return
			default:
			}
			// buffer full: drop the oldest queued frame, the newest must go out
			select {
			case <-send:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go readPump(conn, done)
	s.writePump(conn, send, done)
}

// readPump drains client frames so control messages are processed.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("[ws] read closed err=%v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, send <-chan pipeline.Snapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	var written uint64
	for {
		select {
		case snap := <-send:
			if snap.Version <= written {
				continue
			}
			written = snap.Version
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.payload(snap)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
