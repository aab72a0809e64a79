// Package match plays games between engine handles and adjudicates them.
package match

import (
	"fmt"
	"strconv"
	"time"

	"github.com/corentings/chess/v2"

	"github.com/hailam/cactus/internal/board"
	"github.com/hailam/cactus/internal/coupler"
)

// Outcome of a game from White's point of view.
type Outcome int

const (
	Unfinished Outcome = iota
	WhiteWins
	BlackWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case WhiteWins:
		return "1-0"
	case BlackWins:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	}
	return "*"
}

// lostBy maps the losing color to the outcome.
var lostBy = [2]Outcome{board.White: BlackWins, board.Black: WhiteWins}

// Termination says why a game ended.
type Termination int

const (
	NotTerminated Termination = iota
	Checkmate
	Stalemate
	Repetition
	FiftyMove
	InsufficientMaterial
	Timeout
	IllegalMove
	EngineFailure
	Tablebase
	MoveLimit
)

var terminationNames = [...]string{
	NotTerminated:        "unterminated",
	Checkmate:            "checkmate",
	Stalemate:            "stalemate",
	Repetition:           "threefold repetition",
	FiftyMove:            "fifty-move rule",
	InsufficientMaterial: "insufficient material",
	Timeout:              "time forfeit",
	IllegalMove:          "illegal move",
	EngineFailure:        "engine failure",
	Tablebase:            "tablebase adjudication",
	MoveLimit:            "move limit",
}

func (t Termination) String() string {
	if int(t) < len(terminationNames) {
		return terminationNames[t]
	}
	return "termination(" + strconv.Itoa(int(t)) + ")"
}

// Ply is one move as played.
type Ply struct {
	UCI   string
	SAN   string
	Score coupler.Score
	Depth int
	Time  time.Duration
}

// Game is a played (or abandoned) game.
type Game struct {
	Event    string
	Round    int
	White    string
	Black    string
	StartFEN string
	TC       string
	Started  time.Time
	Duration time.Duration

	Moves       []Ply
	Outcome     Outcome
	Termination Termination
	// Detail holds extra text such as the illegal move or engine error.
	Detail string
}

// Reason describes how the game ended.
func (g *Game) Reason() string {
	if g.Detail == "" {
		return g.Termination.String()
	}
	return g.Termination.String() + ": " + g.Detail
}

// UCIMoves returns the moves in long algebraic notation.
func (g *Game) UCIMoves() []string {
	moves := make([]string, len(g.Moves))
	for i, p := range g.Moves {
		moves[i] = p.UCI
	}
	return moves
}

// ScoreFor returns the game score for the named player: 1, 0.5 or 0. It is
// 0 for unfinished games and players who did not take part.
func (g *Game) ScoreFor(name string) float64 {
	switch {
	case g.Outcome == Draw && (name == g.White || name == g.Black):
		return 0.5
	case g.Outcome == WhiteWins && name == g.White, g.Outcome == BlackWins && name == g.Black:
		return 1
	}
	return 0
}

func (g *Game) end(o Outcome, t Termination, detail string) {
	g.Outcome = o
	g.Termination = t
	g.Detail = detail
}

// PGN renders the game with its tag pairs.
func (g *Game) PGN() (string, error) {
	opts := []func(*chess.Game){}
	if g.StartFEN != board.StartFEN {
		fen, err := chess.FEN(g.StartFEN)
		if err != nil {
			return "", fmt.Errorf("match: pgn: %w", err)
		}
		opts = append(opts, fen)
	}
	cg := chess.NewGame(opts...)

	for i, p := range g.Moves {
		m, err := chess.UCINotation{}.Decode(cg.Position(), p.UCI)
		if err != nil {
			return "", fmt.Errorf("match: pgn: ply %d %s: %w", i+1, p.UCI, err)
		}
		san := chess.AlgebraicNotation{}.Encode(cg.Position(), m)
		if err := cg.PushMove(san, &chess.PushMoveOptions{ForceMainline: true}); err != nil {
			return "", fmt.Errorf("match: pgn: ply %d %s: %w", i+1, san, err)
		}
	}

	// Mates, stalemates and dead positions are recognised by the library
	// itself; everything else is recorded explicitly.
	if cg.Outcome() == chess.NoOutcome {
		switch g.Outcome {
		case WhiteWins:
			cg.Resign(chess.Black)
		case BlackWins:
			cg.Resign(chess.White)
		case Draw:
			method := chess.DrawOffer
			switch g.Termination {
			case Repetition:
				method = chess.ThreefoldRepetition
			case FiftyMove:
				method = chess.FiftyMoveRule
			}
			if err := cg.Draw(method); err != nil {
				cg.Draw(chess.DrawOffer)
			}
		}
	}

	event := g.Event
	if event == "" {
		event = "Cactus match"
	}
	cg.AddTagPair("Event", event)
	cg.AddTagPair("Site", "?")
	cg.AddTagPair("Date", g.Started.Format("2006.01.02"))
	cg.AddTagPair("Round", strconv.Itoa(max(g.Round, 1)))
	cg.AddTagPair("White", g.White)
	cg.AddTagPair("Black", g.Black)
	cg.AddTagPair("Result", g.Outcome.String())
	cg.AddTagPair("Termination", g.Reason())
	if g.TC != "" {
		cg.AddTagPair("TimeControl", g.TC)
	}
	if g.StartFEN != board.StartFEN {
		cg.AddTagPair("FEN", g.StartFEN)
		cg.AddTagPair("SetUp", "1")
	}
	return cg.String(), nil
}
