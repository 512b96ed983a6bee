// README: Notification store backed by PostgreSQL.
package notify

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"mealdrop/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, is_read, order_id, restaurant_id, action_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(n.ID),
		string(n.UserID),
		string(n.Type),
		n.Title,
		n.Message,
		n.IsRead,
		toStringPtr(n.OrderID),
		toStringPtr(n.RestaurantID),
		n.ActionURL,
		n.CreatedAt,
	)
	return err
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, unreadOnly bool) ([]Notification, error) {
	query := `
        SELECT id, user_id, type, title, message, is_read, order_id, restaurant_id, action_url, created_at
        FROM notifications
        WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var orderID, restaurantID, actionURL sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead,
			&orderID, &restaurantID, &actionURL, &n.CreatedAt); err != nil {
			return nil, err
		}
		if orderID.Valid {
			v := types.ID(orderID.String)
			n.OrderID = &v
		}
		if restaurantID.Valid {
			v := types.ID(restaurantID.String)
			n.RestaurantID = &v
		}
		if actionURL.Valid {
			n.ActionURL = &actionURL.String
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips is_read for one notification; the user_id guard keeps users
// out of each other's rows.
func (s *Store) MarkRead(ctx context.Context, id, userID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE notifications SET is_read = TRUE
        WHERE id = $1 AND user_id = $2`, string(id), string(userID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID types.ID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE notifications SET is_read = TRUE
        WHERE user_id = $1 AND is_read = FALSE`, string(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
