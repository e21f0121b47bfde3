// Package giveaway draws prize winners from a pool of verified entries.
package giveaway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

// MaxAttempts bounds the draws made for a single prize tier before giving up.
const MaxAttempts = 100

var (
	ErrEmptyPool         = fmt.Errorf("giveaway: no verified entries: %w", domain.ErrValidation)
	ErrTooFewEntrants    = fmt.Errorf("giveaway: fewer distinct entrants than prize tiers: %w", domain.ErrValidation)
	ErrAttemptsExhausted = errors.New("giveaway: no distinct winner found within attempt limit")
)

// Source yields uniform integers in [0, n).
type Source interface {
	Intn(n int) (int, error)
}

type cryptoSource struct{}

func (cryptoSource) Intn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// CryptoSource returns a Source backed by crypto/rand.
func CryptoSource() Source { return cryptoSource{} }

// Pool is the flattened entry-number space. Entry number k (1-based) belongs to
// the range whose First <= k <= Last.
type Pool struct {
	ranges []domain.EntryRange
	size   int
	users  int
}

// NewPool builds the pool over verified entries in the order given.
func NewPool(entries []*domain.GiveawayEntry) *Pool {
	ranges := domain.EntryRanges(entries)
	p := &Pool{ranges: ranges}
	seen := make(map[string]struct{}, len(ranges))
	for _, r := range ranges {
		p.size = r.Last
		seen[r.UserRef] = struct{}{}
	}
	p.users = len(seen)
	return p
}

// Size is the number of entry numbers in the pool.
func (p *Pool) Size() int { return p.size }

// Entrants is the number of distinct users holding at least one entry number.
func (p *Pool) Entrants() int { return p.users }

// Owner returns the range holding entry number n.
func (p *Pool) Owner(n int) (domain.EntryRange, bool) {
	if n < 1 || n > p.size {
		return domain.EntryRange{}, false
	}
	i := sort.Search(len(p.ranges), func(i int) bool { return p.ranges[i].Last >= n })
	return p.ranges[i], true
}

// Drawer runs rejection sampling over a Pool.
type Drawer struct {
	src Source
	now func() time.Time
}

// NewDrawer returns a Drawer using src, or crypto/rand when src is nil.
func NewDrawer(src Source) *Drawer {
	if src == nil {
		src = CryptoSource()
	}
	return &Drawer{src: src, now: time.Now}
}

// Draw picks one winner per prize tier. A user wins at most once per drawing;
// a draw landing on an existing winner is retried, up to MaxAttempts per tier.
func (d *Drawer) Draw(g *domain.Giveaway, entries []*domain.GiveawayEntry) ([]*domain.GiveawayWinner, error) {
	pool := NewPool(entries)
	if pool.Size() == 0 {
		return nil, ErrEmptyPool
	}
	if pool.Entrants() < len(g.PrizeTiers) {
		return nil, fmt.Errorf("%w: %d entrants for %d tiers", ErrTooFewEntrants, pool.Entrants(), len(g.PrizeTiers))
	}

	at := d.now().UTC()
	won := make(map[string]struct{}, len(g.PrizeTiers))
	winners := make([]*domain.GiveawayWinner, 0, len(g.PrizeTiers))

	for tier, prize := range g.PrizeTiers {
		var picked *domain.GiveawayWinner
		for attempt := 0; attempt < MaxAttempts; attempt++ {
			idx, err := d.src.Intn(pool.Size())
			if err != nil {
				return nil, fmt.Errorf("giveaway.Draw: random source: %w", err)
			}
			owner, _ := pool.Owner(idx + 1)
			if _, dup := won[owner.UserRef]; dup {
				continue
			}
			picked = &domain.GiveawayWinner{
				ID:          uuid.New(),
				GiveawayID:  g.ID,
				Tier:        tier + 1,
				Prize:       prize,
				EntryID:     owner.EntryID,
				UserRef:     owner.UserRef,
				EntryNumber: idx + 1,
				DrawnAt:     at,
			}
			break
		}
		if picked == nil {
			return nil, fmt.Errorf("giveaway.Draw: tier %d: %w", tier+1, ErrAttemptsExhausted)
		}
		won[picked.UserRef] = struct{}{}
		winners = append(winners, picked)
	}

	return winners, nil
}
