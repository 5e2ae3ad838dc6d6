// Package admin exposes the allocator's stats and control surface over
// HTTP: GET /stats, POST /reassign, POST /limit (spec.md §6, "Core-exposed").
package admin

import (
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/valyala/fasthttp"
)

// Authenticator validates the bearer token on mutating requests
// (/reassign, /limit). GET /stats is never gated — it is read-only and
// operators poll it frequently.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator { return &Authenticator{secret: []byte(secret)} }

// Authorize extracts and validates an "Authorization: Bearer <token>"
// header, HMAC-signed with the authenticator's secret.
func (a *Authenticator) Authorize(ctx *fasthttp.RequestCtx) bool {
	h := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	tokenStr := strings.TrimPrefix(h, prefix)

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	return err == nil && token.Valid
}
