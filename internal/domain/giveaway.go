package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type GiveawayStatus string

const (
	GiveawayOpen   GiveawayStatus = "open"
	GiveawayClosed GiveawayStatus = "closed"
	GiveawayDrawn  GiveawayStatus = "drawn"
)

// PrizeTierCount is the number of prizes awarded per drawing.
const PrizeTierCount = 3

type Giveaway struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      GiveawayStatus `json:"status"`
	PrizeTiers  []string       `json:"prize_tiers"` // index 0 is the first prize
	DrawAt      *time.Time     `json:"draw_at,omitempty"`
	DrawnAt     *time.Time     `json:"drawn_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (g *Giveaway) Validate() error {
	if g.Title == "" {
		return Invalid("title", "is required")
	}
	if len(g.PrizeTiers) != PrizeTierCount {
		return Invalid("prize_tiers", "exactly three prize tiers are required")
	}
	for _, t := range g.PrizeTiers {
		if t == "" {
			return Invalid("prize_tiers", "tier names cannot be empty")
		}
	}
	return nil
}

type GiveawayEntry struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	GiveawayID uuid.UUID `json:"giveaway_id"`
	UserRef    string    `json:"user_ref"`
	Entries    int       `json:"entries"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntryRange is the contiguous block of entry numbers owned by one entry.
type EntryRange struct {
	EntryID uuid.UUID `json:"entry_id"`
	UserRef string    `json:"user_ref"`
	First   int       `json:"first"`
	Last    int       `json:"last"`
}

// EntryRanges numbers verified entries consecutively from 1 in the order given.
// Unverified entries and entries with a non-positive count own no numbers.
func EntryRanges(entries []*GiveawayEntry) []EntryRange {
	ranges := make([]EntryRange, 0, len(entries))
	next := 1
	for _, e := range entries {
		if !e.Verified || e.Entries <= 0 {
			continue
		}
		ranges = append(ranges, EntryRange{
			EntryID: e.ID,
			UserRef: e.UserRef,
			First:   next,
			Last:    next + e.Entries - 1,
		})
		next += e.Entries
	}
	return ranges
}

type GiveawayWinner struct {
	ID          uuid.UUID `json:"id"`
	GiveawayID  uuid.UUID `json:"giveaway_id"`
	Tier        int       `json:"tier"` // 1-based
	Prize       string    `json:"prize"`
	EntryID     uuid.UUID `json:"entry_id"`
	UserRef     string    `json:"user_ref"`
	EntryNumber int       `json:"entry_number"`
	DrawnAt     time.Time `json:"drawn_at"`
}

type GiveawayRepository interface {
	Create(ctx context.Context, g *Giveaway) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Giveaway, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*Giveaway, error)
	SetStatus(ctx context.Context, tenantID, id uuid.UUID, from, to GiveawayStatus) error
	// ListDue returns closed giveaways across all tenants whose draw_at has passed.
	ListDue(ctx context.Context, now time.Time) ([]*Giveaway, error)

	AddEntry(ctx context.Context, e *GiveawayEntry) error
	// VerifyEntry fails with ErrInvalidTransition once the giveaway is drawn.
	VerifyEntry(ctx context.Context, tenantID, giveawayID, entryID uuid.UUID) error
	// ListEntries returns entries in insertion order.
	ListEntries(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*GiveawayEntry, error)

	// SaveWinners inserts winners and moves the giveaway from closed to drawn
	// in one transaction. verified is the number of verified entries the
	// winners were drawn from; ErrConflict means the pool changed meanwhile.
	SaveWinners(ctx context.Context, tenantID, giveawayID uuid.UUID, verified int, winners []*GiveawayWinner, at time.Time) error
	ListWinners(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*GiveawayWinner, error)
}
