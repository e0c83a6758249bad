package main

import (
	"net/http"

	"kicks/internal/domain/users"
)

type ctxKey string

const (
	userCtx  ctxKey = "user"
	guestCtx ctxKey = "guest"
)

func getUserFromContext(r *http.Request) *users.User {
	if user, ok := r.Context().Value(userCtx).(*users.User); ok {
		return user
	}
	return nil
}

func getGuestToken(r *http.Request) string {
	token, _ := r.Context().Value(guestCtx).(string)
	return token
}

// shopper identifies whose cart and orders a request acts on. Signed-in
// users win over any guest token they still carry.
type shopper struct {
	userID     *int64
	guestToken string
}

func shopperFrom(r *http.Request) shopper {
	if user := getUserFromContext(r); user != nil {
		id := user.ID
		return shopper{userID: &id}
	}
	return shopper{guestToken: getGuestToken(r)}
}
