package notify

import "context"

// Inbox exposes the read-state operations on a user's notifications.
type Inbox struct {
	Store Store
}

func (i *Inbox) List(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	return i.Store.ListNotifications(ctx, userID, unreadOnly)
}

func (i *Inbox) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return i.Store.CountUnread(ctx, userID)
}

func (i *Inbox) MarkRead(ctx context.Context, userID, id int64) error {
	return i.Store.MarkRead(ctx, userID, id)
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID int64) error {
	return i.Store.MarkAllRead(ctx, userID)
}

func (i *Inbox) Delete(ctx context.Context, userID, id int64) error {
	return i.Store.DeleteNotification(ctx, userID, id)
}

func (i *Inbox) DeleteAll(ctx context.Context, userID int64) error {
	return i.Store.DeleteAllNotifications(ctx, userID)
}
