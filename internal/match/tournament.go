package match

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/cactus/internal/coupler"
)

// Score is a win/draw/loss tally from the first engine's point of view.
type Score struct {
	Wins, Draws, Losses int
}

func (s Score) Games() int { return s.Wins + s.Draws + s.Losses }

// Points counts a win as 1 and a draw as a half.
func (s Score) Points() float64 {
	return float64(s.Wins) + float64(s.Draws)/2
}

func (s Score) String() string {
	return fmt.Sprintf("+%d =%d -%d", s.Wins, s.Draws, s.Losses)
}

func (s *Score) add(g *Game, firstIsWhite bool) {
	switch {
	case g.Outcome == Draw:
		s.Draws++
	case (g.Outcome == WhiteWins) == firstIsWhite && g.Outcome != Unfinished:
		s.Wins++
	case g.Outcome != Unfinished:
		s.Losses++
	}
}

// Tournament plays a two-engine match. Games are played in pairs from the
// same opening with colors reversed.
type Tournament struct {
	Engines     [2]coupler.Config
	Games       int
	Concurrency int
	// Openings are start FENs, one per game pair, reused cyclically.
	Openings []string
	// Options is the template for every game; FEN and Round are set per
	// game.
	Options Options

	// OnGame is called after each game, never concurrently.
	OnGame func(g *Game, s Score)
}

// Run plays every game and returns them in round order with the final
// tally. Engines are launched once per concurrent slot and reused.
func (t *Tournament) Run(ctx context.Context) ([]*Game, Score, error) {
	var score Score
	if t.Games <= 0 {
		return nil, score, nil
	}
	slots := max(1, min(t.Concurrency, t.Games))

	pools := [2]*coupler.Pool{}
	for i, cfg := range t.Engines {
		cfgs := make([]coupler.Config, slots)
		for j := range cfgs {
			cfgs[j] = cfg
		}
		p, err := coupler.NewPool(ctx, cfgs...)
		if err != nil {
			if pools[0] != nil {
				err = errors.Join(err, pools[0].Close(context.Background()))
			}
			return nil, score, err
		}
		pools[i] = p
	}
	defer func() {
		for _, p := range pools {
			p.Close(context.Background())
		}
	}()

	games := make([]*Game, t.Games)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(slots)
	for i := range t.Games {
		g.Go(func() error {
			first, err := pools[0].Acquire(gctx)
			if err != nil {
				return err
			}
			defer pools[0].Release(first)
			second, err := pools[1].Acquire(gctx)
			if err != nil {
				return err
			}
			defer pools[1].Release(second)

			opts := t.Options
			opts.Round = i + 1
			if len(t.Openings) > 0 {
				opts.FEN = t.Openings[(i/2)%len(t.Openings)]
			}
			white, black := first, second
			firstIsWhite := i%2 == 0
			if !firstIsWhite {
				white, black = second, first
			}

			game, err := Play(gctx, white, black, opts)
			if err != nil {
				return fmt.Errorf("round %d: %w", i+1, err)
			}

			mu.Lock()
			defer mu.Unlock()
			games[i] = game
			score.add(game, firstIsWhite)
			if t.OnGame != nil {
				t.OnGame(game, score)
			}
			return nil
		})
	}
	err := g.Wait()

	played := games[:0]
	for _, game := range games {
		if game != nil {
			played = append(played, game)
		}
	}
	return played, score, err
}
