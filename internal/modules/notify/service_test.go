// README: Notification service tests; DB-backed parts skipped unless MEALDROP_TEST_DSN is set.
package notify

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mealdrop/internal/modules/order"
	"mealdrop/internal/types"
)

// capturingBroadcaster records every publish; failErr, when set, fails them all.
type capturingBroadcaster struct {
	mu      sync.Mutex
	failErr error
	calls   []publishCall
}

type publishCall struct {
	Channel string
	Event   string
}

func (b *capturingBroadcaster) Publish(_ context.Context, channel, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, publishCall{Channel: channel, Event: event})
	return b.failErr
}

func (b *capturingBroadcaster) channels(event string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.calls {
		if c.Event == event {
			out = append(out, c.Channel)
		}
	}
	return out
}

func setupTestService(t *testing.T, b Broadcaster) *Service {
	t.Helper()

	dsn := os.Getenv("MEALDROP_TEST_DSN")
	if dsn == "" {
		t.Skip("MEALDROP_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE notifications"); err != nil {
		t.Fatalf("truncate notifications: %v", err)
	}
	return NewService(NewStore(db), b, slog.Default())
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	content, err := os.ReadFile(filepath.Join(dir, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}

	var cleaned strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cleaned.WriteString(scanner.Text())
		cleaned.WriteString("\n")
	}

	for _, stmt := range strings.Split(cleaned.String(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	b := &capturingBroadcaster{}
	svc := setupTestService(t, b)
	ctx := context.Background()

	orderID := types.ID("o1")
	n, err := svc.Notify(ctx, "u1", TypeOrderPlaced, "Order Placed", "on its way to the restaurant", &Context{OrderID: &orderID})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected generated id")
	}

	list, err := svc.List(ctx, "u1", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 stored notification, got %d", len(list))
	}
	got := list[0]
	if got.Type != TypeOrderPlaced || got.Title != "Order Placed" || got.IsRead {
		t.Fatalf("stored notification mismatch: %+v", got)
	}
	if got.OrderID == nil || *got.OrderID != orderID {
		t.Fatal("order reference lost")
	}

	if chans := b.channels("notification"); len(chans) != 1 || chans[0] != "user:u1" {
		t.Fatalf("expected one publish on user:u1, got %v", chans)
	}
}

func TestNotifySurvivesBroadcastFailure(t *testing.T) {
	b := &capturingBroadcaster{failErr: errors.New("redis down")}
	svc := setupTestService(t, b)
	ctx := context.Background()

	if _, err := svc.Notify(ctx, "u1", TypeSystem, "Maintenance", "tonight 02:00", nil); err != nil {
		t.Fatalf("publish failure must not surface: %v", err)
	}
	list, err := svc.List(ctx, "u1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("row must persist despite broadcast failure, got %d", len(list))
	}
}

func TestOrderStatusChangedFanOut(t *testing.T) {
	b := &capturingBroadcaster{}
	svc := setupTestService(t, b)
	ctx := context.Background()

	eta := time.Now().Add(45 * time.Minute)
	svc.OrderStatusChanged(ctx, &order.Order{
		ID:                    "o9",
		CustomerID:            "u9",
		RestaurantID:          "r9",
		Status:                order.StatusConfirmed,
		EstimatedDeliveryTime: &eta,
	})

	// exactly one stored notification for the customer
	list, err := svc.List(ctx, "u9", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(list))
	}
	if list[0].Type != TypeOrderConfirmed {
		t.Fatalf("type = %s, want %s", list[0].Type, TypeOrderConfirmed)
	}

	// status event goes to both the customer and the restaurant
	chans := b.channels("order_status")
	if len(chans) != 2 || chans[0] != "user:u9" || chans[1] != "restaurant:r9" {
		t.Fatalf("order_status fan-out = %v", chans)
	}
}

func TestMarkReadGuards(t *testing.T) {
	svc := setupTestService(t, nil)
	ctx := context.Background()

	n, err := svc.Notify(ctx, "u1", TypeOrderDelivered, "Order Delivered", "enjoy", nil)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := svc.MarkRead(ctx, n.ID, "someone_else"); err != ErrNotFound {
		t.Fatalf("foreign mark-read: got %v, want ErrNotFound", err)
	}
	if err := svc.MarkRead(ctx, n.ID, "u1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread, err := svc.List(ctx, "u1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}

func TestMarkAllRead(t *testing.T) {
	svc := setupTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Notify(ctx, "u1", TypePromotion, "Deal", "free delivery today", nil); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if _, err := svc.Notify(ctx, "u2", TypePromotion, "Deal", "free delivery today", nil); err != nil {
		t.Fatalf("notify: %v", err)
	}

	count, err := svc.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 3 {
		t.Fatalf("marked %d rows, want 3", count)
	}

	// u2 untouched
	unread, err := svc.List(ctx, "u2", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("u2 unread = %d, want 1", len(unread))
	}

	// repeat is a no-op
	count, err = svc.MarkAllRead(ctx, "u1")
	if err != nil {
		t.Fatalf("repeat mark all read: %v", err)
	}
	if count != 0 {
		t.Fatalf("repeat marked %d rows, want 0", count)
	}
}
