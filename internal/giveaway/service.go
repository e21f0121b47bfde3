package giveaway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
)

// Publisher announces entity changes on the tenant realtime channel.
type Publisher interface {
	PublishChange(ctx context.Context, tenantID uuid.UUID, ev domain.ChangeEvent) error
}

// Recorder counts drawing outcomes.
type Recorder interface {
	ObserveDraw(result string)
}

const maxPoolRetries = 3

// Service loads a closed giveaway, draws its winners and persists them.
type Service struct {
	repo     domain.GiveawayRepository
	drawer   *Drawer
	events   Publisher
	recorder Recorder
}

// NewService creates a giveaway service. events and recorder may be nil.
func NewService(repo domain.GiveawayRepository, drawer *Drawer, events Publisher, recorder Recorder) *Service {
	if drawer == nil {
		drawer = NewDrawer(nil)
	}
	return &Service{repo: repo, drawer: drawer, events: events, recorder: recorder}
}

// Draw selects and stores the winners of a closed giveaway. Nothing is written
// when the drawing fails.
func (s *Service) Draw(ctx context.Context, tenantID, id uuid.UUID) ([]*domain.GiveawayWinner, error) {
	g, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("giveaway.Service.Draw: %w", err)
	}
	if g.Status != domain.GiveawayClosed {
		return nil, fmt.Errorf("giveaway.Service.Draw: giveaway is %s: %w", g.Status, domain.ErrInvalidTransition)
	}

	var winners []*domain.GiveawayWinner
	for attempt := 1; ; attempt++ {
		winners, err = s.drawOnce(ctx, tenantID, g)
		if err == nil {
			break
		}
		// A verification landed between reading the pool and saving.
		if errors.Is(err, domain.ErrConflict) && attempt < maxPoolRetries {
			log.Debug().Str("giveaway_id", id.String()).Int("attempt", attempt).Msg("giveaway: entry pool changed, redrawing")
			continue
		}
		s.observe(err)
		return nil, fmt.Errorf("giveaway.Service.Draw: %w", err)
	}
	s.observe(nil)

	if s.events != nil {
		if err := s.events.PublishChange(ctx, tenantID, domain.NewChangeEvent("giveaway", "drawn", id)); err != nil {
			log.Warn().Err(err).Str("giveaway_id", id.String()).Msg("giveaway: publish change failed")
		}
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("giveaway_id", id.String()).
		Int("winners", len(winners)).
		Msg("giveaway drawn")

	return winners, nil
}

func (s *Service) drawOnce(ctx context.Context, tenantID uuid.UUID, g *domain.Giveaway) ([]*domain.GiveawayWinner, error) {
	entries, err := s.repo.ListEntries(ctx, tenantID, g.ID)
	if err != nil {
		return nil, err
	}
	verified := 0
	for _, e := range entries {
		if e.Verified {
			verified++
		}
	}

	winners, err := s.drawer.Draw(g, entries)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveWinners(ctx, tenantID, g.ID, verified, winners, winners[0].DrawnAt); err != nil {
		return nil, err
	}
	return winners, nil
}

// DrawDue draws every closed giveaway whose draw time has passed. Failures are
// logged and skipped so one bad pool does not block the rest.
func (s *Service) DrawDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("giveaway.Service.DrawDue: %w", err)
	}

	drawn := 0
	for _, g := range due {
		if ctx.Err() != nil {
			return drawn, ctx.Err()
		}
		if _, err := s.Draw(ctx, g.TenantID, g.ID); err != nil {
			log.Error().Err(err).
				Str("tenant_id", g.TenantID.String()).
				Str("giveaway_id", g.ID.String()).
				Msg("scheduled giveaway draw failed")
			continue
		}
		drawn++
	}
	return drawn, nil
}

func (s *Service) observe(err error) {
	if s.recorder == nil {
		return
	}
	switch {
	case err == nil:
		s.recorder.ObserveDraw("drawn")
	case errors.Is(err, ErrAttemptsExhausted):
		s.recorder.ObserveDraw("exhausted")
	case errors.Is(err, domain.ErrValidation):
		s.recorder.ObserveDraw("rejected")
	default:
		s.recorder.ObserveDraw("error")
	}
}
