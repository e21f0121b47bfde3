package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DailyRevenue struct {
	Day     time.Time       `json:"day"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type Dashboard struct {
	From              time.Time           `json:"from"`
	To                time.Time           `json:"to"`
	OrdersByStatus    map[OrderStatus]int `json:"orders_by_status"`
	GrossRevenue      decimal.Decimal     `json:"gross_revenue"`
	AverageOrderValue decimal.Decimal     `json:"average_order_value"`
	RevenueByDay      []DailyRevenue      `json:"revenue_by_day"`
	TopProducts       []ProductSales      `json:"top_products"`
	LowStockCount     int                 `json:"low_stock_count"`
	ActiveCouriers    int                 `json:"active_couriers"`
}

// Finalize derives the average order value from the delivered order count.
func (d *Dashboard) Finalize() {
	delivered := d.OrdersByStatus[OrderStatusDelivered]
	if delivered == 0 {
		d.AverageOrderValue = decimal.Zero
		return
	}
	d.AverageOrderValue = RoundMoney(d.GrossRevenue.Div(decimal.NewFromInt(int64(delivered))))
}

type AnalyticsRepository interface {
	OrdersByStatus(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[OrderStatus]int, error)
	RevenueByDay(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyRevenue, error)
	TopProducts(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]ProductSales, error)
	LowStockCount(ctx context.Context, tenantID uuid.UUID) (int, error)
	ActiveCouriers(ctx context.Context, tenantID uuid.UUID) (int, error)
}
