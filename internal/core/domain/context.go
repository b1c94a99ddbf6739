package domain

import "context"

type accountCtxKey struct{}

// ContextWithAccount attaches the authenticated account to ctx.
func ContextWithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, account)
}

// AccountFromContext returns the account attached by the session verifier.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	account, ok := ctx.Value(accountCtxKey{}).(*Account)
	return account, ok && account != nil
}
