package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/notify"
)

// Job names, also used as metric labels.
const (
	JobInvoices       = "invoices"
	JobGiveawayDraws  = "giveaway_draws"
	JobLowStockDigest = "low_stock_digest"
)

// LowStockKey is the notification template key for the daily digest.
const LowStockKey = "inventory.low_stock"

type InvoiceGenerator interface {
	GeneratePreviousMonth(ctx context.Context) (int, error)
}

type DueDrawer interface {
	DrawDue(ctx context.Context, now time.Time) (int, error)
}

type LowStockLister interface {
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error)
}

type TenantLister interface {
	List(ctx context.Context) ([]*domain.Tenant, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID uuid.UUID, key string, data map[string]any) (*domain.NotificationLog, error)
}

func Invoices(gen InvoiceGenerator) Func {
	return func(ctx context.Context) error {
		_, err := gen.GeneratePreviousMonth(ctx)
		return err
	}
}

func GiveawayDraws(d DueDrawer) Func {
	return func(ctx context.Context) error {
		_, err := d.DrawDue(ctx, time.Now())
		return err
	}
}

// LowStockDigest sends each active tenant with low-stock products its
// inventory.low_stock template. Tenants without the template are skipped.
func LowStockDigest(tenants TenantLister, products LowStockLister, notifier Dispatcher) Func {
	return func(ctx context.Context) error {
		list, err := tenants.List(ctx)
		if err != nil {
			return fmt.Errorf("jobs.LowStockDigest: %w", err)
		}

		sent := 0
		var errs []error
		for _, t := range list {
			if t.Status != domain.TenantStatusActive {
				continue
			}
			low, err := products.ListLowStock(ctx, t.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("tenant %s: %w", t.ID, err))
				continue
			}
			if len(low) == 0 {
				continue
			}

			_, err = notifier.Dispatch(ctx, t.ID, LowStockKey, LowStockData(low))
			switch {
			case errors.Is(err, notify.ErrNoTemplate):
			case err != nil:
				errs = append(errs, fmt.Errorf("tenant %s: %w", t.ID, err))
			default:
				sent++
			}
		}

		log.Info().Int("tenants", len(list)).Int("sent", sent).Msg("low-stock digest")
		if len(errs) > 0 {
			return fmt.Errorf("jobs.LowStockDigest: %w", errors.Join(errs...))
		}
		return nil
	}
}

// LowStockData is the template data for the digest: count and products, each
// with sku, name, stock and threshold.
func LowStockData(products []*domain.Product) map[string]any {
	rows := make([]map[string]any, 0, len(products))
	for _, p := range products {
		rows = append(rows, map[string]any{
			"sku":       p.SKU,
			"name":      p.Name,
			"stock":     p.StockQuantity,
			"threshold": p.LowStockThreshold,
		})
	}
	return map[string]any{
		"count":    len(products),
		"products": rows,
	}
}
