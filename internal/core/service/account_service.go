package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

// AccountService serves the account endpoints that sit behind the
// authorization gate.
type AccountService struct {
	accounts ports.AccountRepository
	codec    ports.TokenCodec
	audit    ports.AuditRecorder
	log      zerolog.Logger
	now      func() time.Time
}

func NewAccountService(accounts ports.AccountRepository, codec ports.TokenCodec, audit ports.AuditRecorder, log zerolog.Logger) *AccountService {
	if audit == nil {
		audit = nopRecorder{}
	}
	return &AccountService{accounts: accounts, codec: codec, audit: audit, log: log, now: time.Now}
}

func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.NotFound("account not found")
		}
		return nil, domain.Internal(err, "find account by id")
	}
	return account, nil
}

// UpdateSelf changes the caller's own profile. The store bumps updated_at, so
// the caller's old tokens die and a new session is returned.
func (s *AccountService) UpdateSelf(ctx context.Context, account *domain.Account, in ports.SelfUpdateInput, meta ports.RequestMeta) (*domain.Session, *domain.Account, error) {
	update := domain.AccountUpdate{Name: in.Name}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		update.Email = &email
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, domain.Internal(err, "hash password")
		}
		h := string(hash)
		update.PasswordHash = &h
	}

	updated, err := s.apply(ctx, account.ID, update)
	if err != nil {
		return nil, nil, err
	}

	session, err := issueSession(s.codec, updated)
	if err != nil {
		return nil, nil, err
	}

	s.record(account, updated, meta)
	return session, updated, nil
}

// UpdateByAdmin edits any account. The target's outstanding tokens are
// revoked by the fence bump.
func (s *AccountService) UpdateByAdmin(ctx context.Context, actor *domain.Account, id string, in ports.AdminUpdateInput, meta ports.RequestMeta) (*domain.Account, error) {
	if !actor.Satisfies(domain.RoleAdmin) {
		return nil, domain.Unauthorized(domain.MsgNotAuthorized)
	}

	update := domain.AccountUpdate{Name: in.Name, Admin: in.Admin}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		update.Email = &email
	}

	updated, err := s.apply(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.record(actor, updated, meta)
	return updated, nil
}

func (s *AccountService) apply(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	if update.Empty() {
		return nil, domain.Validation("nothing to update")
	}

	updated, err := s.accounts.Update(ctx, id, update)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil, domain.NotFound("account not found")
	case errors.Is(err, domain.ErrAccountExists):
		return nil, domain.Conflict("email already registered")
	case err != nil:
		return nil, domain.Internal(err, "update account")
	}

	s.log.Info().
		Str("account_id", updated.ID).
		Int64("fence", updated.Fence()).
		Msg("account updated, previous tokens revoked")

	return updated, nil
}

func (s *AccountService) record(actor, target *domain.Account, meta ports.RequestMeta) {
	s.audit.Record(domain.AuditEvent{
		Kind:      domain.AuditAccountUpdate,
		AccountID: target.ID,
		Email:     target.Email,
		ActorID:   actor.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		At:        s.now().UTC(),
	})
}
