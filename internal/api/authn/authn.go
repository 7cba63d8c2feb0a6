package authn

import "context"

// User is the authenticated requester. Handlers pass identity explicitly to
// the ledger; nothing below the HTTP layer reads it from ambient state.
type User struct {
	ID       int64
	Name     string
	Email    string
	StripeID string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the User stored in ctx. It returns nil if ctx is
// nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *User {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*User)
	if !ok {
		return nil
	}

	return user
}
