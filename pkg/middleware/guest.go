package middleware

import "context"

const guestKey contextKey = "guest_id"

// GetGuestID returns the guest identifier assigned to an unauthenticated
// caller, or "" when none is set.
func GetGuestID(ctx context.Context) string {
	if v, ok := ctx.Value(guestKey).(string); ok {
		return v
	}
	return ""
}

// SetGuestID stores the guest identifier in the context.
func SetGuestID(ctx context.Context, guestID string) context.Context {
	return context.WithValue(ctx, guestKey, guestID)
}
