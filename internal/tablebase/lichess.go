package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/board"
)

// DefaultLichessURL is the public lichess tablebase endpoint.
const DefaultLichessURL = "https://tablebase.lichess.ovh/standard"

// LichessProber queries the lichess tablebase over HTTP. It needs network
// access and is rate limited, so wrap it in a CachedProber.
type LichessProber struct {
	BaseURL string
	Client  *http.Client
}

func NewLichessProber() *LichessProber {
	return &LichessProber{
		BaseURL: DefaultLichessURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type lichessResponse struct {
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
	Moves    []struct {
		UCI string `json:"uci"`
	} `json:"moves"`
}

// Probe implements Prober.
func (lp *LichessProber) Probe(ctx context.Context, pos *board.Position) (Result, bool, error) {
	if !Within(lp, pos) {
		return Result{}, false, nil
	}

	u := lp.BaseURL + "?fen=" + url.QueryEscape(pos.FEN())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, false, err
	}
	resp, err := lp.Client.Do(req)
	if err != nil {
		return Result{}, false, fmt.Errorf("tablebase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, false, fmt.Errorf("tablebase: %s", resp.Status)
	}

	var body lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, false, fmt.Errorf("tablebase: %w", err)
	}
	wdl, ok := categoryWDL(body.Category)
	if !ok {
		logrus.WithField("category", body.Category).Debug("tablebase has no answer")
		return Result{}, false, nil
	}

	r := Result{WDL: wdl}
	if body.DTZ != nil {
		r.DTZ = *body.DTZ
	}
	if len(body.Moves) > 0 {
		r.Best = body.Moves[0].UCI
	}
	return r, true, nil
}

// MaxPieces implements Prober.
func (lp *LichessProber) MaxPieces() int { return 7 }

// categoryWDL maps lichess categories. "unknown" and the maybe-* forms
// depend on move history the service does not see, so they are not
// answers.
func categoryWDL(category string) (WDL, bool) {
	switch strings.TrimSpace(category) {
	case "win":
		return Win, true
	case "cursed-win":
		return CursedWin, true
	case "draw":
		return Draw, true
	case "blessed-loss":
		return BlessedLoss, true
	case "loss":
		return Loss, true
	}
	return Draw, false
}
