package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	guestCookie = "guest_token"
	// guestHeader carries the same signed value for clients without cookies.
	guestHeader = "X-Guest-Token"
	guestMaxAge = 30 * 24 * time.Hour
)

var errInvalidGuestToken = errors.New("invalid guest token")

// guestCodec signs guest tokens so a shopper cannot read another guest's cart
// by guessing its scope. Value format: token.base64(hmac(token)).
type guestCodec struct {
	secret []byte
	secure bool
}

func newGuestCodec(secret string, secure bool) *guestCodec {
	return &guestCodec{secret: []byte(secret), secure: secure}
}

func (c *guestCodec) sign(token string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *guestCodec) encode(token string) string {
	return token + "." + c.sign(token)
}

func (c *guestCodec) decode(v string) (string, error) {
	token, sig, ok := strings.Cut(v, ".")
	if !ok || token == "" {
		return "", errInvalidGuestToken
	}
	if !hmac.Equal([]byte(c.sign(token)), []byte(sig)) {
		return "", errInvalidGuestToken
	}
	return token, nil
}

// fromRequest returns the verified guest token carried by r, preferring the
// cookie over the header.
func (c *guestCodec) fromRequest(r *http.Request) (string, bool) {
	v := ""
	if ck, err := r.Cookie(guestCookie); err == nil {
		v = ck.Value
	}
	if v == "" {
		v = r.Header.Get(guestHeader)
	}
	if v == "" {
		return "", false
	}

	token, err := c.decode(v)
	if err != nil {
		return "", false
	}
	return token, true
}

// issue creates a new guest token and hands it to the client.
func (c *guestCodec) issue(w http.ResponseWriter) string {
	token := uuid.NewString()
	val := c.encode(token)

	http.SetCookie(w, &http.Cookie{
		Name:     guestCookie,
		Value:    val,
		Path:     "/",
		MaxAge:   int(guestMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(guestHeader, val)
	return token
}
