// Package service implements the purchase-requisition use cases on top of
// the ports. Every mutating operation runs in one transaction; domain events
// collected inside it are dispatched only after commit.
package service

import (
	"context"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger discards everything
func NopLogger() Logger {
	return nopLogger{}
}

// Clock returns the current time; tests may pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// publisher forwards committed events to the dispatcher.
type publisher struct {
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

func (p publisher) publish(ctx context.Context, events []*event.Event) {
	if p.dispatcher == nil {
		return
	}
	for _, evt := range events {
		if err := p.dispatcher.Dispatch(ctx, evt); err != nil {
			p.logger.Error("Event handlers failed", "error", err, "event_type", evt.Type.String(), "pr_id", evt.PRID)
		}
	}
}

// notifier writes in-app notifications inside the caller's transaction.
type notifier struct {
	users         port.UserRepository
	notifications port.NotificationRepository
}

func (n notifier) notifyUser(ctx context.Context, userID int64, title, message, kind string, prID int64, at time.Time) error {
	note := &entity.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		CreatedAt: at,
	}
	if prID != 0 {
		note.RelatedPRID = &prID
	}
	return n.notifications.Create(ctx, note)
}

// notifyRole notifies every active holder of role and returns how many were reached.
func (n notifier) notifyRole(ctx context.Context, role entity.Role, title, message, kind string, prID int64, at time.Time) (int, error) {
	users, err := n.users.ListActiveByRole(ctx, role)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if err := n.notifyUser(ctx, u.ID, title, message, kind, prID, at); err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

func requireRole(actor entity.Actor, allowed ...entity.Role) error {
	for _, r := range allowed {
		if actor.Role == r {
			return nil
		}
	}
	return apperr.Authorization("role %s may not perform this action", actor.Role)
}

func int64Ptr(v int64) *int64 {
	return &v
}
