package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	POStatusDraft     PurchaseOrderStatus = "draft"
	POStatusSubmitted PurchaseOrderStatus = "submitted"
	POStatusApproved  PurchaseOrderStatus = "approved"
	POStatusReceived  PurchaseOrderStatus = "received"
	POStatusCancelled PurchaseOrderStatus = "cancelled"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case POStatusDraft, POStatusSubmitted, POStatusApproved, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

// ValidTransition checks the purchase order workflow:
// draft->submitted->approved->received, submitted->draft (returned for edits),
// draft|submitted->cancelled. received and cancelled are terminal.
// approved->received happens through receiving goods, not a direct transition.
func (s PurchaseOrderStatus) ValidTransition(to PurchaseOrderStatus) bool {
	switch s {
	case POStatusDraft:
		return to == POStatusSubmitted || to == POStatusCancelled
	case POStatusSubmitted:
		return to == POStatusApproved || to == POStatusDraft || to == POStatusCancelled
	default:
		return false
	}
}

func (s PurchaseOrderStatus) Editable() bool   { return s == POStatusDraft }
func (s PurchaseOrderStatus) CanReceive() bool { return s == POStatusApproved }

type PurchaseOrderItem struct {
	ID               uuid.UUID       `json:"id"`
	PurchaseOrderID  uuid.UUID       `json:"purchase_order_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	ProductName      string          `json:"product_name"`
	OrderedQuantity  int             `json:"ordered_quantity"`
	ReceivedQuantity int             `json:"received_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Amount           decimal.Decimal `json:"amount"`
}

// Outstanding is the quantity still expected from the vendor.
func (i *PurchaseOrderItem) Outstanding() int {
	return i.OrderedQuantity - i.ReceivedQuantity
}

type PurchaseOrder struct {
	ID            uuid.UUID           `json:"id"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	Number        string              `json:"number"`
	VendorName    string              `json:"vendor_name"`
	VendorEmail   string              `json:"vendor_email,omitempty"`
	Status        PurchaseOrderStatus `json:"status"`
	Items         []PurchaseOrderItem `json:"items"`
	Total         decimal.Decimal     `json:"total"`
	ExpectedAt    *time.Time          `json:"expected_at,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	AttachmentKey string              `json:"attachment_key,omitempty"`
	CreatedBy     uuid.UUID           `json:"created_by"`
	ApprovedBy    *uuid.UUID          `json:"approved_by,omitempty"`
	SubmittedAt   *time.Time          `json:"submitted_at,omitempty"`
	ApprovedAt    *time.Time          `json:"approved_at,omitempty"`
	ReceivedAt    *time.Time          `json:"received_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func PurchaseOrderNumber(seq int64) string {
	return fmt.Sprintf("PO-%06d", seq)
}

// POLine is a requested restock line before product names are resolved.
type POLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitCost  decimal.Decimal
}

// SetItems replaces the line items, resolving product names, and recomputes the total.
func (po *PurchaseOrder) SetItems(lines []POLine, products map[uuid.UUID]*Product) error {
	if !po.Status.Editable() {
		return fmt.Errorf("purchase order %s is %s: %w", po.Number, po.Status, ErrInvalidTransition)
	}
	if strings.TrimSpace(po.VendorName) == "" {
		return Invalid("vendor_name", "is required")
	}
	if len(lines) == 0 {
		return Invalid("items", "at least one item is required")
	}

	items := make([]PurchaseOrderItem, 0, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if err := NonNegative(fmt.Sprintf("items[%d].unit_cost", i), l.UnitCost); err != nil {
			return err
		}
		p, ok := products[l.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", l.ProductID, ErrNotFound)
		}
		amount := RoundMoney(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
		items = append(items, PurchaseOrderItem{
			ID:              uuid.New(),
			PurchaseOrderID: po.ID,
			ProductID:       p.ID,
			ProductName:     p.Name,
			OrderedQuantity: l.Quantity,
			UnitCost:        l.UnitCost,
			Amount:          amount,
		})
		total = total.Add(amount)
	}

	po.Items = items
	po.Total = total
	return nil
}

// Receipt is a quantity of goods received against one line item.
type Receipt struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// Receive applies receipts to the line items. It refuses to receive more than
// is outstanding on a line. When every line is fully received the order moves
// to received; otherwise it stays approved.
func (po *PurchaseOrder) Receive(receipts []Receipt, at time.Time) error {
	if !po.Status.CanReceive() {
		return fmt.Errorf("purchase order %s is %s: %w", po.Number, po.Status, ErrInvalidTransition)
	}
	if len(receipts) == 0 {
		return Invalid("receipts", "at least one receipt is required")
	}

	index := make(map[uuid.UUID]int, len(po.Items))
	for i := range po.Items {
		index[po.Items[i].ID] = i
	}
	for n, r := range receipts {
		i, ok := index[r.ItemID]
		if !ok {
			return fmt.Errorf("purchase order item %s: %w", r.ItemID, ErrNotFound)
		}
		if r.Quantity <= 0 {
			return Invalid(fmt.Sprintf("receipts[%d].quantity", n), "must be at least 1")
		}
		if r.Quantity > po.Items[i].Outstanding() {
			return Invalid(fmt.Sprintf("receipts[%d].quantity", n),
				fmt.Sprintf("only %d outstanding for %s", po.Items[i].Outstanding(), po.Items[i].ProductName))
		}
		po.Items[i].ReceivedQuantity += r.Quantity
	}

	if po.FullyReceived() {
		po.Status = POStatusReceived
		po.ReceivedAt = &at
	}
	po.UpdatedAt = at
	return nil
}

func (po *PurchaseOrder) FullyReceived() bool {
	for i := range po.Items {
		if po.Items[i].Outstanding() > 0 {
			return false
		}
	}
	return len(po.Items) > 0
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)
	List(ctx context.Context, tenantID uuid.UUID, status PurchaseOrderStatus, limit, offset int) ([]*PurchaseOrder, error)
	// Update rewrites header fields and line items; only valid while draft.
	Update(ctx context.Context, po *PurchaseOrder) error
	UpdateStatus(ctx context.Context, po *PurchaseOrder, from PurchaseOrderStatus) error
	// ApplyReceipt persists received quantities, the resulting status and the
	// stock increments in one transaction.
	ApplyReceipt(ctx context.Context, po *PurchaseOrder, receipts []Receipt) error
	SetAttachment(ctx context.Context, tenantID, id uuid.UUID, key string) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
