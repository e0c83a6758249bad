package main

import (
	"errors"
	"net/http"

	"kicks/internal/domain/carts"
	"kicks/internal/domain/orders"
	"kicks/internal/domain/users"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

// syncFailedResponse reports a cart mutation that could not be persisted.
// The shopper's cart is unchanged and the request may be retried.
func (app *application) syncFailedResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("cart sync failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusServiceUnavailable, "your cart could not be saved, please try again")
}

// storeErrorResponse maps domain errors to the JSON error envelope.
func (app *application) storeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, carts.ErrSync):
		app.syncFailedResponse(w, r, err)
	case errors.Is(err, carts.ErrInvalidLine),
		errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrTotalOutOfRange),
		errors.Is(err, orders.ErrInvalidShipping):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, carts.ErrLineNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrDuplicateRequest),
		errors.Is(err, users.ErrDuplicateEmail):
		app.conflictResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
