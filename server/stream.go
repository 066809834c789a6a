package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rrt-planner/rrt"
	"rrt-planner/session"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamMessage is one websocket payload. Nodes carries only the nodes added
// since the previous message; clients append them to what they already have.
type streamMessage struct {
	Type        string       `json:"type"`
	Seq         uint64       `json:"seq"`
	State       string       `json:"state"`
	Offset      int          `json:"offset"`
	Nodes       []rrt.Node   `json:"nodes"`
	Reached     bool         `json:"reached"`
	Path        []rrt.Point  `json:"path,omitempty"`
	Fingerprint string       `json:"fingerprint"`
	Frame       *frameHeader `json:"frame,omitempty"`
}

// frameHeader is sent once, with the first message.
type frameHeader struct {
	Start         rrt.Point  `json:"start"`
	Goal          rrt.Point  `json:"goal"`
	GoalThreshold float64    `json:"goalThreshold"`
	Bounds        rrt.Bounds `json:"bounds"`
}

const (
	messageFrame       = "frame"
	messageGoalReached = session.EventGoalReached
)

// GET /plans/{id}/stream - Push one message per frame tick
func (s *Server) planStreamHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("plan_id", sess.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(zap.String("plan_id", sess.ID), zap.String("remote", conn.RemoteAddr().String()))
	logger.Info("📡 stream opened")
	defer logger.Info("stream closed")

	frames, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	// The reader only services control frames and notices the client leaving.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var st streamState
	if err := st.write(conn, sess.Frame()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-sess.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "plan stopped"),
				time.Now().Add(writeWait))
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case frame := <-frames:
			if err := st.write(conn, frame); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		}
	}
}

// streamState tracks what one client has already been sent.
type streamState struct {
	started  bool
	seq      uint64
	sent     int
	notified bool
}

// write sends f unless the client already has a newer frame. Frames may be
// dropped for slow clients, so the goal notification is keyed on the reached
// flag rather than on the frame event.
func (st *streamState) write(conn *websocket.Conn, f session.Frame) error {
	if st.started && f.Seq <= st.seq {
		return nil
	}

	msg := streamMessage{
		Type:        messageFrame,
		Seq:         f.Seq,
		State:       f.State,
		Offset:      st.sent,
		Nodes:       f.Nodes[min(st.sent, len(f.Nodes)):],
		Reached:     f.Reached,
		Fingerprint: f.Fingerprint,
	}
	if !st.started {
		msg.Frame = &frameHeader{
			Start:         f.Start,
			Goal:          f.Goal,
			GoalThreshold: f.GoalThreshold,
			Bounds:        f.Bounds,
		}
	}
	if f.Reached && !st.notified {
		msg.Type = messageGoalReached
		msg.Path = f.Path
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	st.started = true
	st.seq = f.Seq
	st.sent = len(f.Nodes)
	st.notified = st.notified || f.Reached
	return nil
}
