package postgres

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/notify"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationStore struct {
	DB *pgxpool.Pool
}

func (s *NotificationStore) InsertNotification(ctx context.Context, n *notify.Notification) error {
	return conn(ctx, s.DB).QueryRow(ctx, `
		INSERT INTO notifications(user_id, title, content, type, is_read, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		n.UserID, n.Title, n.Content, string(n.Type), n.Read, n.RelatedID, n.CreatedAt,
	).Scan(&n.ID)
}

func (s *NotificationStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]notify.Notification, error) {
	sql := `SELECT id, user_id, title, content, type, is_read, related_id, created_at
		FROM notifications WHERE user_id=$1`
	if unreadOnly {
		sql += ` AND NOT is_read`
	}
	sql += ` ORDER BY created_at DESC, id DESC`
	rows, err := conn(ctx, s.DB).Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []notify.Notification{}
	for rows.Next() {
		var (
			n   notify.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &typ, &n.Read, &n.RelatedID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = notify.Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := conn(ctx, s.DB).QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

// MarkRead returns orders.ErrNotFound when the notification does not belong to userID.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := conn(ctx, s.DB).Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := conn(ctx, s.DB).Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`, userID)
	return err
}

func (s *NotificationStore) DeleteNotification(ctx context.Context, userID, id int64) error {
	tag, err := conn(ctx, s.DB).Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) DeleteAllNotifications(ctx context.Context, userID int64) error {
	_, err := conn(ctx, s.DB).Exec(ctx, `DELETE FROM notifications WHERE user_id=$1`, userID)
	return err
}
