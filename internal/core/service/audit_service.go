package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

type auditService struct {
	repo      ports.AuditRepository
	publisher ports.AuditPublisher
	log       zerolog.Logger
}

// NewAuditService returns an AuditService. publisher may be nil.
func NewAuditService(repo ports.AuditRepository, publisher ports.AuditPublisher, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, publisher: publisher, log: log}
}

// Process persists the event and then fans it out. Only persistence
// failures are returned.
func (s *auditService) Process(ctx context.Context, event domain.AuditEvent) error {
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("process audit event: insert: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).
				Str("kind", string(event.Kind)).
				Str("account_id", event.AccountID).
				Msg("failed to publish audit event")
		}
	}

	s.log.Debug().
		Str("kind", string(event.Kind)).
		Str("account_id", event.AccountID).
		Msg("audit event processed")

	return nil
}
