package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/shopdesk/internal/domain"
)

const (
	defaultReportDays = 30
	maxReportDays     = 366
	topProductCount   = 5
)

type ReportRangeInput struct {
	From time.Time `query:"from" doc:"Start, inclusive (RFC 3339); 30 days before to when omitted"`
	To   time.Time `query:"to" doc:"End, exclusive (RFC 3339); now when omitted"`
}

// bounds fills defaults and rejects inverted or oversized ranges.
func (in *ReportRangeInput) bounds(now time.Time) (time.Time, time.Time, error) {
	to := in.To
	if to.IsZero() {
		to = now
	}
	from := in.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultReportDays)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, huma.Error422UnprocessableEntity("to must be after from")
	}
	if to.Sub(from) > maxReportDays*24*time.Hour {
		return time.Time{}, time.Time{}, huma.Error422UnprocessableEntity("range cannot exceed one year")
	}
	return from.UTC(), to.UTC(), nil
}

type DashboardOutput struct {
	Body *domain.Dashboard
}

type RevenueReportOutput struct {
	Body struct {
		From  time.Time             `json:"from"`
		To    time.Time             `json:"to"`
		Total decimal.Decimal       `json:"total"`
		Days  []domain.DailyRevenue `json:"days"`
	}
}

func RegisterAnalyticsRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/analytics/dashboard",
		Summary:     "Sales and operations summary",
		Description: "Gross revenue and average order value count delivered orders only.",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *ReportRangeInput) (*DashboardOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}
		from, to, err := input.bounds(time.Now())
		if err != nil {
			return nil, err
		}

		d, err := buildDashboard(ctx, store.Analytics(), tenantID, from, to)
		if err != nil {
			return nil, apiError(ctx, err, "dashboard")
		}
		return &DashboardOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-revenue-report",
		Method:      http.MethodGet,
		Path:        "/analytics/revenue",
		Summary:     "Delivered revenue per day",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *ReportRangeInput) (*RevenueReportOutput, error) {
		tenantID, err := tenantFrom(ctx)
		if err != nil {
			return nil, err
		}
		from, to, err := input.bounds(time.Now())
		if err != nil {
			return nil, err
		}

		days, err := store.Analytics().RevenueByDay(ctx, tenantID, from, to)
		if err != nil {
			return nil, apiError(ctx, err, "revenue report")
		}

		out := &RevenueReportOutput{}
		out.Body.From, out.Body.To = from, to
		out.Body.Days = days
		out.Body.Total = sumRevenue(days)
		return out, nil
	})
}

func buildDashboard(ctx context.Context, repo domain.AnalyticsRepository, tenantID uuid.UUID, from, to time.Time) (*domain.Dashboard, error) {
	byStatus, err := repo.OrdersByStatus(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	days, err := repo.RevenueByDay(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	top, err := repo.TopProducts(ctx, tenantID, from, to, topProductCount)
	if err != nil {
		return nil, err
	}
	lowStock, err := repo.LowStockCount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	couriers, err := repo.ActiveCouriers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if byStatus == nil {
		byStatus = map[domain.OrderStatus]int{}
	}
	d := &domain.Dashboard{
		From:           from,
		To:             to,
		OrdersByStatus: byStatus,
		GrossRevenue:   sumRevenue(days),
		RevenueByDay:   days,
		TopProducts:    top,
		LowStockCount:  lowStock,
		ActiveCouriers: couriers,
	}
	d.Finalize()
	return d, nil
}

func sumRevenue(days []domain.DailyRevenue) decimal.Decimal {
	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.Revenue)
	}
	return total
}
