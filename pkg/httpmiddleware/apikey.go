package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/auth"
)

// APIKeyHeader carries the client API key. The legacy "api_key" header is
// still accepted.
const APIKeyHeader = "X-API-Key"

// Authenticator resolves a raw API key.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// APIKey rejects requests without a valid API key with 401. The resolved key
// is stored in the request context (see auth.FromContext); it scopes the
// request to the key's store.
func APIKey(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				key = r.Header.Get("api_key")
			}

			info, err := a.Authenticate(r.Context(), key)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					WriteError(w, http.StatusUnauthorized, "invalid or missing api key")
					return
				}
				zctx.From(r.Context()).Error("authenticate api key", zap.Error(err))
				WriteError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}

			ctx := zctx.With(auth.WithKey(r.Context(), info),
				zap.String("store_id", info.StoreID),
				zap.String("api_key_id", info.ID),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
