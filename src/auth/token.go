// Package auth provides TokenSource implementations for the realtime core.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/src/types"
)

// Static returns a TokenSource yielding a fixed token.
func Static(token string) types.TokenSource {
	return staticSource(token)
}

type staticSource string

func (s staticSource) Token(context.Context) (string, error) { return string(s), nil }

// Func adapts a function to a TokenSource.
type Func func(ctx context.Context) (string, error)

func (f Func) Token(ctx context.Context) (string, error) { return f(ctx) }

// JWTExpiry wraps a TokenSource and reports an expired JWT as "not
// authenticated yet" (empty token, nil error) so connection attempts abort
// silently instead of dialing with a dead credential. Claims are inspected
// without signature verification; opaque non-JWT tokens pass through.
func JWTExpiry(src types.TokenSource, logger zerolog.Logger) types.TokenSource {
	parser := jwt.NewParser()
	return Func(func(ctx context.Context) (string, error) {
		token, err := src.Token(ctx)
		if err != nil || token == "" {
			return token, err
		}

		claims := jwt.MapClaims{}
		if _, _, perr := parser.ParseUnverified(token, claims); perr != nil {
			return token, nil
		}
		exp, cerr := claims.GetExpirationTime()
		if cerr != nil || exp == nil {
			return token, nil
		}
		if exp.Before(time.Now()) {
			logger.Debug().Time("expired_at", exp.Time).Msg("bearer token expired, treating as unauthenticated")
			return "", nil
		}
		return token, nil
	})
}
