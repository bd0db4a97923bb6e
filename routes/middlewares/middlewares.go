package middlewares

import (
	"net/http"

	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/fault"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/ratelimit"
)

// Authenticate middleware to check for a valid OAuth access token, and put
// the caller's Identity in the request context.
func Authenticate(secret string, resolver access.Resolver, debug bool) func(http.Handler) http.Handler {
	authorize := oauth.Authorize(secret, nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// oauth.Authorize answers refusals itself; keep its reply out of
			// the way and report ours instead
			authorized := false
			buf := httpx.NewResponseBuffer()
			authorize(identity(w, resolver, debug, &authorized, next)).ServeHTTP(buf, r)

			if !authorized {
				httpx.WriteFault(w, r, fault.Unauthorized("Invalid or expired token"), debug)
			}
		})
	}
}

func identity(w http.ResponseWriter, resolver access.Resolver, debug bool, authorized *bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		*authorized = true

		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		id, err := resolver.Resolve(r.Context(), claims[httpx.ClaimUserID])
		if err != nil {
			httpx.WriteFault(w, r, err, debug)
			return
		}

		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

// RateLimit middleware to throttle requests per client address.
// When the counter store fails, requests are let through.
func RateLimit(limiter *ratelimit.Limiter, debug bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := httpx.ClientIP(r)

			err := limiter.Allow(r.Context(), addr)
			switch {
			case err == nil:
			case fault.Is(err, fault.KindRateLimited):
				log.WithFields(log.Fields{"scope": limiter.Scope, "addr": addr}).Info("rate limited")
				httpx.WriteFault(w, r, err, debug)
				return
			default:
				log.WithError(err).WithField("scope", limiter.Scope).Warn("ratelimit.unavailable")
			}

			next.ServeHTTP(w, r)
		})
	}
}
