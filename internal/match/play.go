package match

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/tablebase"
)

const defaultGrace = 100 * time.Millisecond

// Options configure one game. Limits combine: a timed game may also cap
// depth or nodes.
type Options struct {
	Event string
	Round int
	// FEN is the starting position; empty means the standard one.
	FEN string

	Base            time.Duration
	Inc             time.Duration
	MovesPerSession int
	// TC is recorded in the PGN only.
	TC string

	Depth    int
	Nodes    uint64
	MoveTime time.Duration

	// Grace is how far an engine may overrun its clock before it forfeits
	// on time.
	Grace time.Duration
	// MaxPlies adjudicates a draw after this many plies; 0 means no limit.
	MaxPlies int

	// Tablebase, if set, ends the game once it has a decisive answer or a
	// draw.
	Tablebase tablebase.Prober

	// OnMove is called after every ply with the position reached.
	OnMove func(g *Game, pos *board.Position)
}

func (o Options) grace() time.Duration {
	if o.Grace > 0 {
		return o.Grace
	}
	return defaultGrace
}

// Play runs one game between white and black. The error is non-nil only if
// the game could not be set up or ctx ended it; engine faults such as
// crashes, timeouts and illegal moves lose the game instead.
func Play(ctx context.Context, white, black *coupler.Handle, opts Options) (*Game, error) {
	fen := opts.FEN
	if fen == "" {
		fen = board.StartFEN
	}
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return nil, err
	}

	g := &Game{
		Event:    opts.Event,
		Round:    opts.Round,
		White:    white.Name(),
		Black:    black.Name(),
		StartFEN: pos.FEN(),
		TC:       opts.TC,
		Started:  time.Now(),
	}
	defer func() { g.Duration = time.Since(g.Started) }()

	log := logrus.WithFields(logrus.Fields{"white": g.White, "black": g.Black, "round": opts.Round})
	handles := [2]*coupler.Handle{board.White: white, board.Black: black}

	for color, h := range handles {
		if err := h.NewGame(ctx); err != nil {
			if ctx.Err() != nil {
				return g, ctx.Err()
			}
			g.end(lostBy[color], EngineFailure, err.Error())
			return g, nil
		}
	}

	var clock *Clock
	if opts.Base > 0 {
		clock = NewClock(opts.Base, opts.Inc, opts.MovesPerSession)
	}
	seen := map[uint64]int{pos.Hash: 1}
	var moves []string

	for {
		if adjudicate(ctx, g, pos, seen, opts) {
			log.WithField("result", g.Outcome).Info(g.Reason())
			return g, nil
		}

		stm := pos.SideToMove
		h := handles[stm]

		b := coupler.Budget{Depth: opts.Depth, Nodes: opts.Nodes, MoveTime: opts.MoveTime, Grace: opts.grace()}
		if clock.Timed() {
			b = clock.Budget(stm)
			b.Depth, b.Nodes = opts.Depth, opts.Nodes
			b.Timeout = clock.Remaining(stm) + opts.grace()
		}

		start := time.Now()
		reply, err := h.RequestMove(ctx, g.StartFEN, moves, b)
		spent := time.Since(start)
		if ctx.Err() != nil {
			return g, ctx.Err()
		}
		var te *coupler.TimeoutError
		switch {
		case errors.As(err, &te) && clock.Timed():
			g.end(lostBy[stm], Timeout, "")
			return g, nil
		case err != nil:
			g.end(lostBy[stm], EngineFailure, err.Error())
			return g, nil
		}

		if clock.Timed() && clock.Punch(stm, spent, opts.grace()) {
			g.end(lostBy[stm], Timeout, "")
			return g, nil
		}

		m, err := pos.ParseMove(reply.BestMove)
		if err != nil {
			g.end(lostBy[stm], IllegalMove, reply.BestMove)
			log.WithError(err).Warn("illegal move")
			return g, nil
		}

		g.Moves = append(g.Moves, Ply{
			UCI:   reply.BestMove,
			SAN:   pos.SAN(m),
			Score: reply.Info.Score,
			Depth: reply.Info.Depth,
			Time:  spent,
		})
		moves = append(moves, reply.BestMove)
		pos.MakeMove(m)
		if pos.HalfMoveClock == 0 {
			clear(seen)
		}
		seen[pos.Hash]++

		if opts.OnMove != nil {
			opts.OnMove(g, pos)
		}
	}
}

// adjudicate ends g if pos is decided and reports whether it did.
func adjudicate(ctx context.Context, g *Game, pos *board.Position, seen map[uint64]int, opts Options) bool {
	stm := pos.SideToMove
	switch pos.Status() {
	case board.Checkmate:
		g.end(lostBy[stm], Checkmate, "")
		return true
	case board.Stalemate:
		g.end(Draw, Stalemate, "")
		return true
	case board.DrawFiftyMove:
		g.end(Draw, FiftyMove, "")
		return true
	case board.DrawInsufficientMaterial:
		g.end(Draw, InsufficientMaterial, "")
		return true
	}
	if seen[pos.Hash] >= 3 {
		g.end(Draw, Repetition, "")
		return true
	}

	// Material only changes on a capture, so probe right after one.
	if pos.HalfMoveClock == 0 && tablebase.Within(opts.Tablebase, pos) {
		r, found, err := opts.Tablebase.Probe(ctx, pos)
		switch {
		case err != nil:
			logrus.WithError(err).Debug("tablebase probe failed")
		case found && r.WDL == tablebase.Win:
			g.end(lostBy[stm.Other()], Tablebase, r.WDL.String())
			return true
		case found && r.WDL == tablebase.Loss:
			g.end(lostBy[stm], Tablebase, r.WDL.String())
			return true
		case found:
			g.end(Draw, Tablebase, r.WDL.String())
			return true
		}
	}

	if opts.MaxPlies > 0 && len(g.Moves) >= opts.MaxPlies {
		g.end(Draw, MoveLimit, "")
		return true
	}
	return false
}
