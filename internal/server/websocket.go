package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hailam/cactus/internal/coupler"
)

const writeWait = 10 * time.Second

// InfoMessage is one streamed search update.
type InfoMessage struct {
	Type     string   `json:"type"`
	Depth    int      `json:"depth"`
	SelDepth int      `json:"seldepth,omitempty"`
	Score    string   `json:"score,omitempty"`
	Nodes    uint64   `json:"nodes"`
	NPS      uint64   `json:"nps,omitempty"`
	PV       []string `json:"pv,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// analyse serves /ws/analyse. Each text message is a PositionRequest; the
// reply is a stream of info messages followed by one bestmove message.
// Requests on one connection are handled in order.
func (s *Server) analyse(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()
	log := s.log.WithField("remote", conn.RemoteAddr().String())
	log.Debug("websocket connected")

	send := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read")
			}
			return
		}

		var req PositionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if send(wsError{Type: "error", Error: err.Error()}) != nil {
				return
			}
			continue
		}

		var writeErr error
		onInfo := func(info coupler.Info) {
			if writeErr != nil || info.Depth == 0 {
				return
			}
			msg := InfoMessage{
				Type:     "info",
				Depth:    info.Depth,
				SelDepth: info.SelDepth,
				Nodes:    info.Nodes,
				NPS:      info.NPS,
				PV:       info.PV,
			}
			if info.HasScore {
				msg.Score = info.Score.String()
			}
			writeErr = send(msg)
		}

		resp, err := s.run(r.Context(), &req, onInfo)
		if writeErr != nil {
			return
		}
		if err != nil {
			if send(wsError{Type: "error", Error: err.Error()}) != nil {
				return
			}
			continue
		}
		resp.Type = "bestmove"
		if send(resp) != nil {
			return
		}
	}
}
