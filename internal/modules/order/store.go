// README: Order store backed by PostgreSQL; conditional updates serialise all status writes.
package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mealdrop/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
    id, customer_id, restaurant_id, driver_id, status, status_version,
    payment_status, items, subtotal, delivery_fee, tip, total, currency,
    dropoff_lat, dropoff_lng, delivery_address,
    scheduled_date, scheduled_window,
    estimated_delivery_time, actual_delivery_time, cancellation_reason, created_at`

// Create inserts the order together with its seed ledger entry.
func (s *Store) Create(ctx context.Context, o *Order, note string) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	var scheduledDate *time.Time
	var scheduledWindow *string
	if o.ScheduledDelivery != nil {
		scheduledDate = &o.ScheduledDelivery.Date
		if o.ScheduledDelivery.Window != "" {
			scheduledWindow = &o.ScheduledDelivery.Window
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, customer_id, restaurant_id, driver_id, status, status_version,
            payment_status, items, subtotal, delivery_fee, tip, total, currency,
            dropoff_lat, dropoff_lng, delivery_address,
            scheduled_date, scheduled_window, created_at
        ) VALUES (
            $1, $2, $3, NULL, $4, 0,
            $5, $6, $7, $8, $9, $10, $11,
            $12, $13, $14,
            $15, $16, $17
        )`,
		string(o.ID),
		string(o.CustomerID),
		string(o.RestaurantID),
		string(o.Status),
		string(o.PaymentStatus),
		items,
		o.Subtotal.Amount,
		o.DeliveryFee.Amount,
		o.Tip.Amount,
		o.Total.Amount,
		o.Total.Currency,
		o.Dropoff.Lat, o.Dropoff.Lng,
		o.DeliveryAddress,
		scheduledDate,
		scheduledWindow,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}

	customerID := o.CustomerID
	if err := appendHistoryTx(ctx, tx, HistoryEntry{
		OrderID:   o.ID,
		Status:    o.Status,
		Note:      &note,
		ActorType: ActorCustomer,
		ActorID:   &customerID,
		CreatedAt: o.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// History returns the full status ledger for one order, oldest first.
func (s *Store) History(ctx context.Context, id types.ID) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, status, note, actor_type, actor_id, created_at
        FROM order_status_history
        WHERE order_id = $1
        ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var note, actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &note, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if note.Valid {
			e.Note = &note.String
		}
		if actorID.Valid {
			a := types.ID(actorID.String)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// transitionUpdate carries everything one conditional status write needs.
type transitionUpdate struct {
	OrderID   types.ID
	From      Status
	To        Status
	Version   int
	Note      *string
	ActorType string
	ActorID   *types.ID
	Reason    *string
}

// ApplyTransition performs the conditional status write and, when it takes
// effect, appends the ledger entry in the same transaction. Returns false
// when the guard no longer matches (concurrent writer won).
func (s *Store) ApplyTransition(ctx context.Context, u transitionUpdate) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            estimated_delivery_time = CASE
                WHEN $1 = 'confirmed' AND estimated_delivery_time IS NULL THEN NOW() + interval '45 minutes'
                ELSE estimated_delivery_time
            END,
            actual_delivery_time = CASE WHEN $1 = 'delivered' THEN NOW() ELSE actual_delivery_time END,
            cancellation_reason = COALESCE($2, cancellation_reason)
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(u.To),
		u.Reason,
		string(u.OrderID),
		string(u.From),
		u.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if err := appendHistoryTx(ctx, tx, HistoryEntry{
		OrderID:   u.OrderID,
		Status:    u.To,
		Note:      u.Note,
		ActorType: u.ActorType,
		ActorID:   u.ActorID,
		CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ClaimDriver is the single atomic write behind driver acceptance: the driver
// and the new status land only if nobody holds the order and it is still in
// the dispatch pool. Exactly one of any number of concurrent callers can see
// RowsAffected == 1.
func (s *Store) ClaimDriver(ctx context.Context, orderID, driverID types.ID, note string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET driver_id = $1,
            status = 'out_for_delivery',
            status_version = status_version + 1,
            estimated_delivery_time = COALESCE(estimated_delivery_time, NOW() + interval '35 minutes')
        WHERE id = $2
          AND driver_id IS NULL
          AND status IN ('confirmed', 'preparing', 'ready')`,
		string(driverID),
		string(orderID),
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if err := appendHistoryTx(ctx, tx, HistoryEntry{
		OrderID:   orderID,
		Status:    StatusOutForDelivery,
		Note:      &note,
		ActorType: ActorDriver,
		ActorID:   &driverID,
		CreatedAt: time.Now(),
	}); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ListDispatchPool returns unassigned orders a driver may claim.
func (s *Store) ListDispatchPool(ctx context.Context) ([]Order, error) {
	return s.list(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE driver_id IS NULL
          AND status IN ('confirmed', 'preparing', 'ready')
        ORDER BY created_at`)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID) ([]Order, error) {
	return s.list(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE customer_id = $1
        ORDER BY created_at DESC`, string(customerID))
}

// ListScheduledDue returns paid, still-pending scheduled orders whose slot
// falls inside [from, to]. The result is a snapshot; the promotion itself
// re-checks status through the conditional update.
func (s *Store) ListScheduledDue(ctx context.Context, from, to time.Time) ([]Order, error) {
	return s.list(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE scheduled_date BETWEEN $1 AND $2
          AND status = 'pending'
          AND payment_status = 'paid'
        ORDER BY scheduled_date`, from, to)
}

func (s *Store) ListScheduledUpcoming(ctx context.Context, customerID types.ID, after time.Time) ([]Order, error) {
	return s.list(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE customer_id = $1
          AND scheduled_date > $2
          AND status NOT IN ('delivered', 'cancelled')
        ORDER BY scheduled_date`, string(customerID), after)
}

// UpdateSchedule rewrites the delivery slot while the order is still pending.
func (s *Store) UpdateSchedule(ctx context.Context, id types.ID, date time.Time, window string) (bool, error) {
	var w *string
	if window != "" {
		w = &window
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET scheduled_date = $1, scheduled_window = $2
        WHERE id = $3 AND status = 'pending'`,
		date, w, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaymentPaid flips payment_status pending -> paid. Repeat signals from the
// gateway find zero rows and are reported as already applied. A cancelled
// order never flips; such payments are gateway refund cases, not revenue.
func (s *Store) SetPaymentPaid(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET payment_status = 'paid'
        WHERE id = $1 AND payment_status = 'pending' AND status <> 'cancelled'`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateTip replaces the tip and recomputes the total, refusing once the
// order is terminal. A delivery completing concurrently makes the guard fail.
func (s *Store) UpdateTip(ctx context.Context, id types.ID, tip int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET tip = $1,
            total = subtotal + delivery_fee + $1
        WHERE id = $2 AND status NOT IN ('delivered', 'cancelled')`,
		tip, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func appendHistoryTx(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO order_status_history (order_id, status, note, actor_type, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID),
		string(e.Status),
		e.Note,
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var driverID, deliveryAddr, scheduledWindow, cancelReason sql.NullString
	var scheduledDate, estimated, actual sql.NullTime
	var items []byte
	var currency string

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &driverID, &o.Status, &o.StatusVersion,
		&o.PaymentStatus, &items,
		&o.Subtotal.Amount, &o.DeliveryFee.Amount, &o.Tip.Amount, &o.Total.Amount, &currency,
		&o.Dropoff.Lat, &o.Dropoff.Lng, &deliveryAddr,
		&scheduledDate, &scheduledWindow,
		&estimated, &actual, &cancelReason, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	o.Subtotal.Currency = currency
	o.DeliveryFee.Currency = currency
	o.Tip.Currency = currency
	o.Total.Currency = currency

	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	if deliveryAddr.Valid {
		o.DeliveryAddress = &deliveryAddr.String
	}
	if scheduledDate.Valid {
		o.ScheduledDelivery = &Schedule{Date: scheduledDate.Time}
		if scheduledWindow.Valid {
			o.ScheduledDelivery.Window = scheduledWindow.String
		}
	}
	o.EstimatedDeliveryTime = toTimePtr(estimated)
	o.ActualDeliveryTime = toTimePtr(actual)
	if cancelReason.Valid {
		o.CancellationReason = &cancelReason.String
	}
	return &o, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
