// README: Order aggregate, status definitions, and the append-only status ledger.
package order

import (
	"time"

	"mealdrop/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// statusRank encodes the delivery pipeline as a strict order. A generic
// transition may move an order to any strictly later stage; cancellation is
// not part of the pipeline and goes through Cancel only.
var statusRank = map[Status]int{
	StatusPending:        0,
	StatusConfirmed:      1,
	StatusPreparing:      2,
	StatusReady:          3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// CanAdvance reports whether to is forward-reachable from from on the
// pipeline. Terminal states (delivered, cancelled) have no outgoing moves.
func CanAdvance(from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// IsTerminal reports whether no further transitions are permitted.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// cancellableFrom is the set of states a customer may still cancel from.
func cancellableFrom(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Item struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Schedule is the requested future delivery slot. Immutable once the order
// leaves pending.
type Schedule struct {
	Date   time.Time `json:"date"`
	Window string    `json:"window,omitempty"`
}

type Order struct {
	ID                    types.ID
	CustomerID            types.ID
	RestaurantID          types.ID
	DriverID              *types.ID
	Status                Status
	StatusVersion         int
	PaymentStatus         PaymentStatus
	Items                 []Item
	Subtotal              types.Money
	DeliveryFee           types.Money
	Tip                   types.Money
	Total                 types.Money
	Dropoff               types.Point
	DeliveryAddress       *string
	ScheduledDelivery     *Schedule
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
	CancellationReason    *string
	CreatedAt             time.Time
}

// HistoryEntry is one row of the per-order status ledger. Rows are appended
// in the same transaction as the status write and never mutated.
type HistoryEntry struct {
	ID        int64
	OrderID   types.ID
	Status    Status
	Note      *string
	ActorType string
	ActorID   *types.ID
	CreatedAt time.Time
}

// Actor types recorded on ledger entries.
const (
	ActorCustomer   = "customer"
	ActorRestaurant = "restaurant"
	ActorDriver     = "driver"
	ActorSystem     = "system"
)
