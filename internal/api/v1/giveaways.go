package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

type CreateGiveawayInput struct {
	Body struct {
		Title       string     `json:"title" minLength:"1" maxLength:"255"`
		Description string     `json:"description,omitempty" maxLength:"5000"`
		PrizeTiers  []string   `json:"prize_tiers" minItems:"3" maxItems:"3" doc:"First, second and third prize"`
		DrawAt      *time.Time `json:"draw_at,omitempty" doc:"When set, the scheduler draws once the giveaway is closed and this time has passed"`
	}
}

type GiveawayIDInput struct {
	ID uuid.UUID `path:"id" doc:"Giveaway ID"`
}

type GiveawayOutput struct {
	Body *domain.Giveaway
}

type ListGiveawaysOutput struct {
	Body []*domain.Giveaway
}

type AddEntryInput struct {
	ID   uuid.UUID `path:"id" doc:"Giveaway ID"`
	Body struct {
		UserRef  string `json:"user_ref" minLength:"1" maxLength:"255" doc:"Participant identifier, e.g. an email or handle"`
		Entries  int    `json:"entries" minimum:"1" default:"1" doc:"Number of tickets"`
		Verified bool   `json:"verified,omitempty" doc:"Count the entry immediately"`
	}
}

type EntryOutput struct {
	Body *domain.GiveawayEntry
}

type EntryIDInput struct {
	ID      uuid.UUID `path:"id" doc:"Giveaway ID"`
	EntryID uuid.UUID `path:"entryID" doc:"Entry ID"`
}

type ListEntriesOutput struct {
	Body struct {
		Entries []*domain.GiveawayEntry `json:"entries"`
		Ranges  []domain.EntryRange     `json:"ranges" doc:"Entry numbers owned by each verified entry"`
	}
}

type WinnersOutput struct {
	Body []*domain.GiveawayWinner
}

func RegisterGiveawayRoutes(api huma.API, store DataStore, plans PlanEnforcer, drawer WinnerDrawer, events Events) {
	// Every giveaway route is a plan feature.
	feature := func(ctx context.Context, tenantID uuid.UUID) error {
		if err := plans.RequireFeature(ctx, tenantID, domain.FeatureGiveaways); err != nil {
			return apiError(ctx, err, "giveaway")
		}
		return nil
	}
	reader := func(ctx context.Context) (uuid.UUID, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		return tenantID, feature(ctx, tenantID)
	}
	writer := func(ctx context.Context) (uuid.UUID, error) {
		tenantID, err := requireWriter(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		return tenantID, feature(ctx, tenantID)
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-giveaway",
		Method:        http.MethodPost,
		Path:          "/giveaways",
		Summary:       "Open a giveaway",
		Tags:          []string{"Giveaways"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateGiveawayInput) (*GiveawayOutput, error) {
		tenantID, err := writer(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		tiers := make([]string, 0, len(input.Body.PrizeTiers))
		for _, t := range input.Body.PrizeTiers {
			tiers = append(tiers, strings.TrimSpace(t))
		}
		g := &domain.Giveaway{
			ID:          uuid.New(),
			TenantID:    tenantID,
			Title:       strings.TrimSpace(input.Body.Title),
			Description: input.Body.Description,
			Status:      domain.GiveawayOpen,
			PrizeTiers:  tiers,
			DrawAt:      input.Body.DrawAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := g.Validate(); err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}

		if err := store.Giveaways().Create(ctx, g); err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		recordAudit(ctx, store, tenantID, "giveaway.created", "giveaway", g.ID, map[string]any{"title": g.Title})
		publishChange(ctx, events, tenantID, "giveaway", "created", g.ID)

		return &GiveawayOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-giveaways",
		Method:      http.MethodGet,
		Path:        "/giveaways",
		Summary:     "List giveaways",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, _ *struct{}) (*ListGiveawaysOutput, error) {
		tenantID, err := reader(ctx)
		if err != nil {
			return nil, err
		}

		gs, err := store.Giveaways().List(ctx, tenantID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaways")
		}
		return &ListGiveawaysOutput{Body: gs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-giveaway",
		Method:      http.MethodGet,
		Path:        "/giveaways/{id}",
		Summary:     "Get a giveaway by ID",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *GiveawayIDInput) (*GiveawayOutput, error) {
		tenantID, err := reader(ctx)
		if err != nil {
			return nil, err
		}

		g, err := store.Giveaways().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		return &GiveawayOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-giveaway",
		Method:      http.MethodPost,
		Path:        "/giveaways/{id}/close",
		Summary:     "Stop accepting entries",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *GiveawayIDInput) (*GiveawayOutput, error) {
		tenantID, err := writer(ctx)
		if err != nil {
			return nil, err
		}

		if err := store.Giveaways().SetStatus(ctx, tenantID, input.ID, domain.GiveawayOpen, domain.GiveawayClosed); err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		g, err := store.Giveaways().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		recordAudit(ctx, store, tenantID, "giveaway.closed", "giveaway", g.ID, nil)
		publishChange(ctx, events, tenantID, "giveaway", "closed", g.ID)

		return &GiveawayOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-giveaway-entry",
		Method:        http.MethodPost,
		Path:          "/giveaways/{id}/entries",
		Summary:       "Add an entry",
		Tags:          []string{"Giveaways"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AddEntryInput) (*EntryOutput, error) {
		tenantID, err := writer(ctx)
		if err != nil {
			return nil, err
		}

		g, err := store.Giveaways().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		if g.Status != domain.GiveawayOpen {
			return nil, huma.Error409Conflict("giveaway is " + string(g.Status) + " and no longer takes entries")
		}

		e := &domain.GiveawayEntry{
			ID:         uuid.New(),
			TenantID:   tenantID,
			GiveawayID: g.ID,
			UserRef:    strings.TrimSpace(input.Body.UserRef),
			Entries:    input.Body.Entries,
			Verified:   input.Body.Verified,
			CreatedAt:  time.Now(),
		}
		if e.Entries < 1 {
			e.Entries = 1
		}
		if err := store.Giveaways().AddEntry(ctx, e); err != nil {
			return nil, apiError(ctx, err, "entry")
		}
		recordAudit(ctx, store, tenantID, "giveaway.entry_added", "giveaway", g.ID, map[string]any{
			"entry_id": e.ID.String(),
			"user_ref": e.UserRef,
			"entries":  e.Entries,
		})
		publishChange(ctx, events, tenantID, "giveaway", "updated", g.ID)

		return &EntryOutput{Body: e}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-giveaway-entry",
		Method:      http.MethodPost,
		Path:        "/giveaways/{id}/entries/{entryID}/verify",
		Summary:     "Mark an entry as verified",
		Description: "Only verified entries take part in the drawing.",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *EntryIDInput) (*struct{}, error) {
		tenantID, err := writer(ctx)
		if err != nil {
			return nil, err
		}

		g, err := store.Giveaways().GetByID(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		if g.Status == domain.GiveawayDrawn {
			return nil, huma.Error409Conflict("giveaway has already been drawn")
		}
		if err := store.Giveaways().VerifyEntry(ctx, tenantID, g.ID, input.EntryID); err != nil {
			return nil, apiError(ctx, err, "entry")
		}
		recordAudit(ctx, store, tenantID, "giveaway.entry_verified", "giveaway", g.ID, map[string]any{"entry_id": input.EntryID.String()})
		publishChange(ctx, events, tenantID, "giveaway", "updated", g.ID)

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-giveaway-entries",
		Method:      http.MethodGet,
		Path:        "/giveaways/{id}/entries",
		Summary:     "List entries and their entry numbers",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *GiveawayIDInput) (*ListEntriesOutput, error) {
		tenantID, err := reader(ctx)
		if err != nil {
			return nil, err
		}

		entries, err := store.Giveaways().ListEntries(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "entries")
		}
		out := &ListEntriesOutput{}
		out.Body.Entries = entries
		out.Body.Ranges = domain.EntryRanges(entries)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "draw-giveaway",
		Method:      http.MethodPost,
		Path:        "/giveaways/{id}/draw",
		Summary:     "Draw the winners of a closed giveaway",
		Description: "Picks one distinct winner per prize tier from verified entries. Nothing is saved if the drawing fails.",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *GiveawayIDInput) (*WinnersOutput, error) {
		tenantID, err := requireAdmin(ctx)
		if err != nil {
			return nil, err
		}
		if err := feature(ctx, tenantID); err != nil {
			return nil, err
		}

		winners, err := drawer.Draw(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "giveaway")
		}
		recordAudit(ctx, store, tenantID, "giveaway.drawn", "giveaway", input.ID, map[string]any{"winners": len(winners)})

		return &WinnersOutput{Body: winners}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-giveaway-winners",
		Method:      http.MethodGet,
		Path:        "/giveaways/{id}/winners",
		Summary:     "List the winners of a drawn giveaway",
		Tags:        []string{"Giveaways"},
	}, func(ctx context.Context, input *GiveawayIDInput) (*WinnersOutput, error) {
		tenantID, err := reader(ctx)
		if err != nil {
			return nil, err
		}

		winners, err := store.Giveaways().ListWinners(ctx, tenantID, input.ID)
		if err != nil {
			return nil, apiError(ctx, err, "winners")
		}
		return &WinnersOutput{Body: winners}, nil
	})
}
