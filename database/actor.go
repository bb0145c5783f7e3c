package database

import "context"

type actorContextKey struct{}

// WithActor stamps the request-scoped current actor onto ctx. Handlers call
// this once authentication resolves a Principal; every gorm call made with
// db.WithContext(ctx) afterwards picks it up through the Audited hooks and
// the SET LOCAL app.user_id callback registered in InitDB.
func WithActor(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

func actorFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(actorContextKey{}).(int)
	return id, ok
}

// CurrentActor exposes actorFromContext outside the package for callers that
// need the request's actor id without a *gorm.DB in hand.
func CurrentActor(ctx context.Context) (int, bool) {
	return actorFromContext(ctx)
}
