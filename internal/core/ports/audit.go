package ports

import (
	"context"

	"github.com/forkful/marketplace/internal/core/domain"
)

// AuditRecorder accepts audit events without blocking the caller on I/O.
type AuditRecorder interface {
	Record(event domain.AuditEvent)
}

// AuditService processes a single dequeued audit event.
type AuditService interface {
	Process(ctx context.Context, event domain.AuditEvent) error
}

// AuditRepository persists audit events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event domain.AuditEvent) error
}

// AuditPublisher fans audit events out to other services.
type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}
