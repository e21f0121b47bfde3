package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/shopdesk/internal/domain"
)

type GiveawayRepo struct {
	pool *pgxpool.Pool
}

func NewGiveawayRepo(pool *pgxpool.Pool) *GiveawayRepo {
	return &GiveawayRepo{pool: pool}
}

const giveawayColumns = `id, tenant_id, title, description, status, prize_tiers, draw_at, drawn_at, created_at, updated_at`

func scanGiveaway(row pgx.Row) (*domain.Giveaway, error) {
	var g domain.Giveaway
	err := row.Scan(&g.ID, &g.TenantID, &g.Title, &g.Description, &g.Status, &g.PrizeTiers, &g.DrawAt, &g.DrawnAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func collectGiveaways(rows pgx.Rows, caller string) ([]*domain.Giveaway, error) {
	defer rows.Close()

	var out []*domain.Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}
	return out, nil
}

func (r *GiveawayRepo) Create(ctx context.Context, g *domain.Giveaway) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO giveaways (id, tenant_id, title, description, status, prize_tiers, draw_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.TenantID, g.Title, g.Description, g.Status, g.PrizeTiers, g.DrawAt, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return wrapErr("giveawayRepo.Create", err)
	}
	return nil
}

func (r *GiveawayRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Giveaway, error) {
	g, err := scanGiveaway(r.pool.QueryRow(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if err != nil {
		return nil, wrapErr("giveawayRepo.GetByID", err)
	}
	return g, nil
}

func (r *GiveawayRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Giveaway, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapErr("giveawayRepo.List", err)
	}
	return collectGiveaways(rows, "giveawayRepo.List")
}

func (r *GiveawayRepo) SetStatus(ctx context.Context, tenantID, id uuid.UUID, from, to domain.GiveawayStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE giveaways SET status = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3 AND status = $4`,
		to, tenantID, id, from,
	)
	if err != nil {
		return wrapErr("giveawayRepo.SetStatus", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM giveaways WHERE tenant_id = $1 AND id = $2)`, tenantID, id)
		return fmt.Errorf("giveawayRepo.SetStatus: %w", err)
	}
	return nil
}

func (r *GiveawayRepo) ListDue(ctx context.Context, now time.Time) ([]*domain.Giveaway, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+giveawayColumns+` FROM giveaways
		 WHERE status = 'closed' AND draw_at IS NOT NULL AND draw_at <= $1
		 ORDER BY draw_at`, now)
	if err != nil {
		return nil, wrapErr("giveawayRepo.ListDue", err)
	}
	return collectGiveaways(rows, "giveawayRepo.ListDue")
}

// AddEntry inserts an entry while the giveaway is open.
func (r *GiveawayRepo) AddEntry(ctx context.Context, e *domain.GiveawayEntry) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO giveaway_entries (id, tenant_id, giveaway_id, user_ref, entries, verified, created_at)
		 SELECT $1, $2, $3, $4, $5, $6, $7
		 WHERE EXISTS (SELECT 1 FROM giveaways WHERE tenant_id = $2 AND id = $3 AND status = 'open')`,
		e.ID, e.TenantID, e.GiveawayID, e.UserRef, e.Entries, e.Verified, e.CreatedAt,
	)
	if err != nil {
		return wrapErr("giveawayRepo.AddEntry", err)
	}
	if tag.RowsAffected() == 0 {
		err := staleOrMissing(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM giveaways WHERE tenant_id = $1 AND id = $2)`, e.TenantID, e.GiveawayID)
		return fmt.Errorf("giveawayRepo.AddEntry: giveaway not open: %w", err)
	}
	return nil
}

// VerifyEntry marks an entry verified. It holds a share lock on the giveaway
// row, so it either lands before a drawing takes its exclusive lock or sees
// the giveaway as drawn and fails.
func (r *GiveawayRepo) VerifyEntry(ctx context.Context, tenantID, giveawayID, entryID uuid.UUID) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status domain.GiveawayStatus
		err := tx.QueryRow(ctx,
			`SELECT status FROM giveaways WHERE tenant_id = $1 AND id = $2 FOR SHARE`,
			tenantID, giveawayID,
		).Scan(&status)
		if err != nil {
			return err
		}
		if status == domain.GiveawayDrawn {
			return fmt.Errorf("giveaway already drawn: %w", domain.ErrInvalidTransition)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE giveaway_entries SET verified = true WHERE tenant_id = $1 AND giveaway_id = $2 AND id = $3`,
			tenantID, giveawayID, entryID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return wrapErr("giveawayRepo.VerifyEntry", err)
	}
	return nil
}

// ListEntries returns entries in insertion order, which fixes entry numbering.
func (r *GiveawayRepo) ListEntries(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*domain.GiveawayEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, giveaway_id, user_ref, entries, verified, created_at
		 FROM giveaway_entries WHERE tenant_id = $1 AND giveaway_id = $2 ORDER BY seq`,
		tenantID, giveawayID,
	)
	if err != nil {
		return nil, wrapErr("giveawayRepo.ListEntries", err)
	}
	defer rows.Close()

	var out []*domain.GiveawayEntry
	for rows.Next() {
		var e domain.GiveawayEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.GiveawayID, &e.UserRef, &e.Entries, &e.Verified, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("giveawayRepo.ListEntries: scan: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("giveawayRepo.ListEntries: rows: %w", err)
	}
	return out, nil
}

// SaveWinners locks the giveaway, checks that the verified pool still has the
// size the winners were drawn from, then stores them and marks it drawn.
func (r *GiveawayRepo) SaveWinners(ctx context.Context, tenantID, giveawayID uuid.UUID, verified int, winners []*domain.GiveawayWinner, at time.Time) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE giveaways SET status = 'drawn', drawn_at = $1, updated_at = $1
			 WHERE tenant_id = $2 AND id = $3 AND status = 'closed'`,
			at, tenantID, giveawayID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return staleOrMissing(ctx, tx, `SELECT EXISTS (SELECT 1 FROM giveaways WHERE tenant_id = $1 AND id = $2)`, tenantID, giveawayID)
		}

		var current int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM giveaway_entries WHERE tenant_id = $1 AND giveaway_id = $2 AND verified`,
			tenantID, giveawayID,
		).Scan(&current); err != nil {
			return err
		}
		if current != verified {
			return fmt.Errorf("entry pool changed during drawing (%d verified, drew from %d): %w", current, verified, domain.ErrConflict)
		}

		batch := &pgx.Batch{}
		for _, w := range winners {
			batch.Queue(
				`INSERT INTO giveaway_winners (id, giveaway_id, tier, prize, entry_id, user_ref, entry_number, drawn_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				w.ID, giveawayID, w.Tier, w.Prize, w.EntryID, w.UserRef, w.EntryNumber, w.DrawnAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return wrapErr("giveawayRepo.SaveWinners", err)
	}
	return nil
}

func (r *GiveawayRepo) ListWinners(ctx context.Context, tenantID, giveawayID uuid.UUID) ([]*domain.GiveawayWinner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.id, w.giveaway_id, w.tier, w.prize, w.entry_id, w.user_ref, w.entry_number, w.drawn_at
		 FROM giveaway_winners w JOIN giveaways g ON g.id = w.giveaway_id
		 WHERE g.tenant_id = $1 AND w.giveaway_id = $2 ORDER BY w.tier`,
		tenantID, giveawayID,
	)
	if err != nil {
		return nil, wrapErr("giveawayRepo.ListWinners", err)
	}
	defer rows.Close()

	var out []*domain.GiveawayWinner
	for rows.Next() {
		var w domain.GiveawayWinner
		if err := rows.Scan(&w.ID, &w.GiveawayID, &w.Tier, &w.Prize, &w.EntryID, &w.UserRef, &w.EntryNumber, &w.DrawnAt); err != nil {
			return nil, fmt.Errorf("giveawayRepo.ListWinners: scan: %w", err)
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("giveawayRepo.ListWinners: rows: %w", err)
	}
	return out, nil
}
