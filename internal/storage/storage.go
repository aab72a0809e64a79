package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = fmt.Errorf("storage: not found: %w", badger.ErrKeyNotFound)

// Key prefixes.
const (
	prefixAnalysis = "analysis:"
	prefixGame     = "game:"
	prefixPref     = "pref:"

	keyGameSeq = "seq:game"
)

// Analysis is a cached search result for one position.
type Analysis struct {
	FEN      string    `json:"fen"`
	Depth    int       `json:"depth"`
	BestMove string    `json:"bestmove"`
	Ponder   string    `json:"ponder,omitempty"`
	Score    string    `json:"score"`
	PV       []string  `json:"pv,omitempty"`
	Nodes    uint64    `json:"nodes"`
	Engine   string    `json:"engine,omitempty"`
	Stored   time.Time `json:"stored"`
}

// GameRecord is an archived game.
type GameRecord struct {
	ID     uint64    `json:"id"`
	Played time.Time `json:"played"`
	White  string    `json:"white"`
	Black  string    `json:"black"`
	Result string    `json:"result"`
	Reason string    `json:"reason"`
	PGN    string    `json:"pgn"`
}

// Preferences are the settings the CLI remembers between runs.
type Preferences struct {
	Engine   string    `json:"engine"`
	MoveTime int       `json:"movetime"`
	HashMB   int       `json:"hash"`
	LastUsed time.Time `json:"last_used"`
}

// DefaultPreferences returns the preferences used before any are saved.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Engine:   appName,
		MoveTime: 1000,
		HashMB:   64,
	}
}

// Store wraps a badger database.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", opts.Dir, err)
	}
	seq, err := db.GetSequence([]byte(keyGameSeq), 16)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: game sequence: %w", err)
	}
	logrus.WithField("dir", opts.Dir).Debug("storage opened")
	return &Store{db: db, seq: seq}, nil
}

// Close releases the game sequence and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.seq.Release()
	return errors.Join(err, s.db.Close())
}

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) get(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

// scan calls fn with every value under prefix, newest key first when
// reverse is set, until fn returns false.
func (s *Store) scan(prefix string, reverse bool, fn func(val []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			seek = append(seek, 0xff)
		}
		for it.Seek(seek); it.Valid(); it.Next() {
			var more bool
			err := it.Item().Value(func(val []byte) error {
				var err error
				more, err = fn(val)
				return err
			})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}

func analysisKey(hash uint64, depth int) string {
	// Zero-padded depth keeps keys of one position in depth order.
	return fmt.Sprintf("%s%016x:%03d", prefixAnalysis, hash, depth)
}

// PutAnalysis caches a result under the position hash and its depth.
func (s *Store) PutAnalysis(hash uint64, a Analysis) error {
	if a.Stored.IsZero() {
		a.Stored = time.Now()
	}
	return s.put(analysisKey(hash, a.Depth), a)
}

// GetAnalysis returns the result stored for exactly this depth.
func (s *Store) GetAnalysis(hash uint64, depth int) (*Analysis, error) {
	var a Analysis
	if err := s.get(analysisKey(hash, depth), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// BestAnalysis returns the deepest result for fen whose depth is at least
// minDepth. Entries stored under a colliding hash for another FEN are
// skipped.
func (s *Store) BestAnalysis(hash uint64, fen string, minDepth int) (*Analysis, error) {
	var found *Analysis
	prefix := fmt.Sprintf("%s%016x:", prefixAnalysis, hash)
	err := s.scan(prefix, true, func(val []byte) (bool, error) {
		var a Analysis
		if err := json.Unmarshal(val, &a); err != nil {
			return false, err
		}
		if a.Depth < minDepth {
			return false, nil
		}
		if a.FEN == fen {
			found = &a
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: analysis %s", ErrNotFound, prefix)
	}
	return found, nil
}

// SaveGame archives g and returns the id it was given.
func (s *Store) SaveGame(g GameRecord) (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	g.ID = id
	if g.Played.IsZero() {
		g.Played = time.Now()
	}
	key := fmt.Sprintf("%s%020d-%d", prefixGame, g.Played.UnixNano(), id)
	return id, s.put(key, g)
}

// ListGames returns up to limit archived games, most recent first. A limit
// of zero or less returns all of them.
func (s *Store) ListGames(limit int) ([]GameRecord, error) {
	games := []GameRecord{}
	err := s.scan(prefixGame, true, func(val []byte) (bool, error) {
		var g GameRecord
		if err := json.Unmarshal(val, &g); err != nil {
			return false, err
		}
		games = append(games, g)
		return limit <= 0 || len(games) < limit, nil
	})
	return games, err
}

// SetPref stores v as JSON under name.
func (s *Store) SetPref(name string, v any) error {
	return s.put(prefixPref+name, v)
}

// GetPref decodes the preference name into v.
func (s *Store) GetPref(name string, v any) error {
	return s.get(prefixPref+name, v)
}

// SavePreferences stamps and stores the user preferences.
func (s *Store) SavePreferences(p *Preferences) error {
	p.LastUsed = time.Now()
	return s.SetPref("user", p)
}

// LoadPreferences loads the user preferences, returning defaults if none
// were saved.
func (s *Store) LoadPreferences() (*Preferences, error) {
	p := DefaultPreferences()
	err := s.GetPref("user", p)
	if errors.Is(err, ErrNotFound) {
		return p, nil
	}
	return p, err
}
