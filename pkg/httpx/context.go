package httpx

import (
	"context"

	"github.com/opswell/gatekeep/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID      ctxKey = "user_id"
	CtxKeyPermissions ctxKey = "permissions"
	CtxKeyClaims      ctxKey = "claims"
)

// UserIDFromCtx returns the authenticated subject, or "" when the request
// was not authenticated.
func UserIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromCtx returns the verified claims for an authenticated request.
// The zero value means the request skipped, or failed, authentication.
func ClaimsFromCtx(ctx context.Context) jwtx.Claims {
	if v, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims); ok {
		return v
	}
	return jwtx.Claims{}
}

func permissionsFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyPermissions).([]string); ok {
		return v
	}
	return nil
}
