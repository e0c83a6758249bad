package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kicks/internal/auth"
)

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.auth.basic.user
			pass := app.config.auth.basic.pass

			creds := strings.SplitN(string(decoded), ":", 2)
			if len(creds) != 2 || creds[0] != username || creds[1] != pass {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authenticate resolves the bearer token of r to a user and stores it in the
// request context.
func (app *application) authenticate(r *http.Request, authHeader string) (*http.Request, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("authorization header is malformed")
	}

	jwtToken, err := app.authenticator.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, err
	}

	userID, _, err := auth.Subject(jwtToken)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	user, err := app.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, userCtx, user)
	return r.WithContext(ctx), nil
}

func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
			return
		}

		authed, err := app.authenticate(r, authHeader)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		next.ServeHTTP(w, authed)
	})
}

// OptionalAuthMiddleware lets guests through. A token that is present but
// invalid is still rejected.
func (app *application) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		authed, err := app.authenticate(r, authHeader)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		next.ServeHTTP(w, authed)
	})
}

func (app *application) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r)
		if user == nil {
			app.unauthorizedErrorResponse(w, r, errors.New("not authenticated"))
			return
		}
		if !user.IsAdmin() {
			app.forbiddenResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GuestMiddleware puts the caller's verified guest token, if any, in the
// request context.
func (app *application) GuestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := app.guests.fromRequest(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), guestCtx, token))
		}
		next.ServeHTTP(w, r)
	})
}

// ShopperMiddleware makes sure every anonymous shopper has a guest token,
// issuing one on first contact.
func (app *application) ShopperMiddleware(next http.Handler) http.Handler {
	return app.GuestMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getUserFromContext(r) == nil && getGuestToken(r) == "" {
			token := app.guests.issue(w)
			r = r.WithContext(context.WithValue(r.Context(), guestCtx, token))
		}
		next.ServeHTTP(w, r)
	}))
}

func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.rateLimiter.Enabled {
			if allow, retryAfter := app.rateLimiter.Allow(r.RemoteAddr); !allow {
				app.rateLimitExceededResponse(w, r, retryAfter.String())
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
