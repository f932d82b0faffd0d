package service

import (
	"context"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
)

// DefaultNotificationLimit is the page size of the inbox
const DefaultNotificationLimit = 50

// Inbox is a user's recent notifications
type Inbox struct {
	Notifications []*entity.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// NotificationService reads and acknowledges in-app notifications
type NotificationService interface {
	List(ctx context.Context, actor entity.Actor, limit int) (*Inbox, error)
	MarkRead(ctx context.Context, actor entity.Actor, id int64) error
	MarkAllRead(ctx context.Context, actor entity.Actor) (int64, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo port.NotificationRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, actor entity.Actor, limit int) (*Inbox, error) {
	if limit <= 0 || limit > DefaultNotificationLimit {
		limit = DefaultNotificationLimit
	}
	notes, err := s.notificationRepo.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		s.logger.Error("Failed to list notifications", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	unread, err := s.notificationRepo.CountUnread(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to count notifications", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	if notes == nil {
		notes = []*entity.Notification{}
	}
	return &Inbox{Notifications: notes, Unread: unread}, nil
}

// MarkRead only touches the actor's own notifications
func (s *notificationServiceImpl) MarkRead(ctx context.Context, actor entity.Actor, id int64) error {
	if err := s.notificationRepo.MarkRead(ctx, actor.UserID, id); err != nil {
		s.logger.Error("Failed to mark notification read", "error", err, "user_id", actor.UserID, "id", id)
		return err
	}
	return nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, actor entity.Actor) (int64, error) {
	n, err := s.notificationRepo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to mark notifications read", "error", err, "user_id", actor.UserID)
		return 0, err
	}
	s.logger.Info("Notifications marked read", "user_id", actor.UserID, "count", n)
	return n, nil
}
