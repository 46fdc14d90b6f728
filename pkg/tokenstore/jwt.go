package tokenstore

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	corehttp "github.com/milan604/httpcore/pkg/http"
)

// JWTExpiry wraps a store and treats an expired JWT as absent, removing it
// from the underlying store. Opaque tokens pass through untouched. Signatures
// are not verified; the backend does that.
type JWTExpiry struct {
	next   corehttp.TokenStore
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTExpiry drops tokens that expire within leeway.
func NewJWTExpiry(next corehttp.TokenStore, leeway time.Duration) *JWTExpiry {
	return &JWTExpiry{
		next:   next,
		leeway: leeway,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

func (j *JWTExpiry) GetToken(ctx context.Context) (string, error) {
	token, err := j.next.GetToken(ctx)
	if err != nil || token == "" {
		return token, err
	}

	var claims jwt.RegisteredClaims
	if _, _, err := j.parser.ParseUnverified(token, &claims); err != nil {
		return token, nil
	}
	if claims.ExpiresAt == nil || j.now().Add(j.leeway).Before(claims.ExpiresAt.Time) {
		return token, nil
	}
	if err := j.next.RemoveToken(ctx); err != nil {
		return "", err
	}
	return "", nil
}

func (j *JWTExpiry) RemoveToken(ctx context.Context) error {
	return j.next.RemoveToken(ctx)
}
