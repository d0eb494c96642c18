package service

import (
	"context"

	"fundhub/internal/domain"
	"fundhub/internal/models"
	"fundhub/internal/repository"
	"fundhub/internal/ws"
	"fundhub/pkg/events"

	"go.uber.org/zap"
)

// Notifier is fire-and-forget: delivery failures are logged by the
// implementation and never reach the ledger operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, userID, notifType, title, message, link string)
}

// NotificationService stores the notification, pushes it to any open
// socket of the user and emits a notification event.
type NotificationService struct {
	repo   *repository.NotificationRepository
	hub    *ws.Hub
	events events.Publisher
	clock  Clock
	logger *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, hub *ws.Hub, publisher events.Publisher, clock Clock, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &NotificationService{repo: repo, hub: hub, events: publisher, clock: clock, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, userID, notifType, title, message, link string) {
	n := &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   message,
		Link:   link,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("store notification failed",
			zap.String("user_id", userID), zap.String("type", notifType), zap.Error(err))
		return
	}
	s.hub.BroadcastToUser(userID, map[string]interface{}{"type": "notification", "notification": n})
	if err := s.events.Publish(ctx, events.Event{
		Type:     events.TypeNotificationCreated,
		UserID:   userID,
		Metadata: map[string]interface{}{"notification_type": notifType, "notification_id": n.ID},
	}); err != nil {
		s.logger.Debug("publish notification event failed", zap.Error(err))
	}
}

// NotificationPage is one page of a user's notifications plus the unread total.
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) (*NotificationPage, error) {
	list, err := s.repo.ListByUserID(ctx, userID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: list, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.clock.Now())
}
