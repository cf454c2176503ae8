package middleware

import (
	"context"
	"net/http"

	"gestaoplus/ms_nfse_core/internal/infrastructure/config"
)

// ExtendedTimeout stretches the request context deadline for routes that
// make synchronous authority round trips. Batch transmission can sit on
// the SOAP endpoint far longer than a normal API call, so these routes
// get the massive write timeout instead of the default.
func ExtendedTimeout(cfg config.HTTPSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.WriteTimeoutMassive)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
