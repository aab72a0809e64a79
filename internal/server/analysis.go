package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/storage"
)

// PositionRequest names a position as a FEN plus moves played from it.
type PositionRequest struct {
	FEN      string   `json:"fen"`
	Moves    []string `json:"moves,omitempty"`
	Depth    int      `json:"depth,omitempty"`
	MoveTime int      `json:"movetime,omitempty"` // milliseconds
}

// position validates the request against the board. It returns the base
// FEN to send to an engine and the position after the moves.
func (req *PositionRequest) position() (string, *board.Position, error) {
	fen := req.FEN
	if fen == "" {
		fen = board.StartFEN
	}
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return "", nil, err
	}
	if err := pos.ApplyUCI(req.Moves...); err != nil {
		return "", nil, err
	}
	return fen, pos, nil
}

func (req *PositionRequest) budget(def time.Duration) (coupler.Budget, error) {
	switch {
	case req.Depth < 0 || req.Depth > maxDepth:
		return coupler.Budget{}, fmt.Errorf("depth must be between 1 and %d", maxDepth)
	case req.MoveTime < 0 || time.Duration(req.MoveTime)*time.Millisecond > maxMoveTime:
		return coupler.Budget{}, fmt.Errorf("movetime must be at most %d ms", maxMoveTime.Milliseconds())
	}
	b := coupler.Budget{
		Depth:    req.Depth,
		MoveTime: time.Duration(req.MoveTime) * time.Millisecond,
	}
	if b.Depth == 0 && b.MoveTime == 0 {
		b.MoveTime = def
	}
	return b, nil
}

// BestMoveResponse is the answer to /api/bestmove and the final message on
// /ws/analyse.
type BestMoveResponse struct {
	Type     string   `json:"type,omitempty"`
	BestMove string   `json:"bestmove"`
	SAN      string   `json:"san,omitempty"`
	Ponder   string   `json:"ponder,omitempty"`
	Score    string   `json:"score,omitempty"`
	Depth    int      `json:"depth"`
	Nodes    uint64   `json:"nodes,omitempty"`
	PV       []string `json:"pv,omitempty"`
	Cached   bool     `json:"cached"`
}

func fromAnalysis(a *storage.Analysis, pos *board.Position) BestMoveResponse {
	r := BestMoveResponse{
		BestMove: a.BestMove,
		Ponder:   a.Ponder,
		Score:    a.Score,
		Depth:    a.Depth,
		Nodes:    a.Nodes,
		PV:       a.PV,
		Cached:   true,
	}
	if m, err := pos.ParseMove(a.BestMove); err == nil {
		r.SAN = pos.SAN(m)
	}
	return r
}

// statusError carries the HTTP status for a failed request.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error { return &statusError{http.StatusBadRequest, err} }

func httpStatus(err error) int {
	var se *statusError
	var te *coupler.TimeoutError
	switch {
	case errors.As(err, &se):
		return se.status
	case errors.As(err, &te):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// run answers one request, from the cache or a pooled engine. onInfo may
// be nil.
func (s *Server) run(ctx context.Context, req *PositionRequest, onInfo func(coupler.Info)) (BestMoveResponse, error) {
	fen, pos, err := req.position()
	if err != nil {
		return BestMoveResponse{}, badRequest(err)
	}
	if st := pos.Status(); st == board.Checkmate || st == board.Stalemate {
		return BestMoveResponse{}, &statusError{http.StatusUnprocessableEntity, fmt.Errorf("no legal moves: %s", st)}
	}
	b, err := req.budget(s.moveTime)
	if err != nil {
		return BestMoveResponse{}, badRequest(err)
	}

	current := pos.FEN()
	if s.store != nil && b.Depth > 0 {
		a, err := s.store.BestAnalysis(pos.Hash, current, b.Depth)
		if err == nil {
			return fromAnalysis(a, pos), nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).Warn("analysis cache lookup failed")
		}
	}

	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return BestMoveResponse{}, err
	}
	defer s.pool.Release(h)

	reply, err := h.RequestMoveFunc(ctx, fen, req.Moves, b, onInfo)
	if err != nil {
		return BestMoveResponse{}, err
	}
	m, err := pos.ParseMove(reply.BestMove)
	if err != nil {
		return BestMoveResponse{}, fmt.Errorf("engine %s: %w", h.Name(), err)
	}

	resp := BestMoveResponse{
		BestMove: reply.BestMove,
		SAN:      pos.SAN(m),
		Ponder:   reply.Ponder,
		Depth:    reply.Info.Depth,
		Nodes:    reply.Info.Nodes,
		PV:       reply.Info.PV,
	}
	if reply.Info.HasScore {
		resp.Score = reply.Info.Score.String()
	}

	// A mate found early holds at every greater depth.
	depth := resp.Depth
	if reply.Info.Score.Mate && b.Depth > depth {
		depth = b.Depth
	}
	if s.store != nil && depth > 0 {
		err := s.store.PutAnalysis(pos.Hash, storage.Analysis{
			FEN:      current,
			Depth:    depth,
			BestMove: resp.BestMove,
			Ponder:   resp.Ponder,
			Score:    resp.Score,
			PV:       resp.PV,
			Nodes:    resp.Nodes,
			Engine:   h.Name(),
		})
		if err != nil {
			s.log.WithError(err).Warn("caching analysis")
		}
	}
	return resp, nil
}

func (s *Server) bestMove(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.run(r.Context(), &req, nil)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type legalMove struct {
	UCI string `json:"uci"`
	SAN string `json:"san"`
}

type legalResponse struct {
	FEN    string      `json:"fen"`
	Status string      `json:"status"`
	Check  bool        `json:"check"`
	Moves  []legalMove `json:"moves"`
}

func (s *Server) legal(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	_, pos, err := req.position()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ml := pos.GenerateLegalMoves()
	resp := legalResponse{
		FEN:    pos.FEN(),
		Status: pos.Status().String(),
		Check:  pos.InCheck(),
		Moves:  make([]legalMove, 0, ml.Len()),
	}
	for _, m := range ml.Slice() {
		resp.Moves = append(resp.Moves, legalMove{UCI: m.String(), SAN: pos.SAN(m)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) games(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.GameRecord{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad limit %q", v))
			return
		}
		limit = n
	}
	games, err := s.store.ListGames(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}
