package middlewares

import (
	"context"

	"github.com/dropDatabas3/lazyauth/internal/domain/types"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxIdentity
	ctxSessionToken
)

// =================================================================================
// REQUEST ID
// =================================================================================

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// GetRequestID devuelve el request id inyectado por WithRequestID.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// =================================================================================
// IDENTITY
// =================================================================================

// WithIdentity guarda la identidad verificada en el contexto.
func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

// GetIdentity devuelve la identidad colocada por RequireSession.
func GetIdentity(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(types.Identity)
	return id, ok
}

func withSessionToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, ctxSessionToken, tok)
}

// GetSessionToken devuelve el token crudo que autenticó el request.
func GetSessionToken(ctx context.Context) string {
	v, _ := ctx.Value(ctxSessionToken).(string)
	return v
}
