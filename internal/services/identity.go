package services

import (
	"context"
	"errors"

	"prizedraw/internal/store"
)

// IdentityResolver confirms an identity token exists and returns the
// holder's display name. Implementations return ErrIdentityNotFound for
// unknown tokens.
type IdentityResolver interface {
	Resolve(ctx context.Context, identityToken string) (string, error)
}

// StoreIdentityResolver resolves emails against the users table.
type StoreIdentityResolver struct {
	store store.Store
}

// NewStoreIdentityResolver creates a resolver backed by st.
func NewStoreIdentityResolver(st store.Store) *StoreIdentityResolver {
	return &StoreIdentityResolver{store: st}
}

func (r *StoreIdentityResolver) Resolve(ctx context.Context, identityToken string) (string, error) {
	u, err := r.store.GetUserByEmail(ctx, identityToken)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrIdentityNotFound
	}
	if err != nil {
		return "", storageErr("resolve identity", err)
	}
	return u.Name, nil
}
