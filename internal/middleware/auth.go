package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const (
	headerAuthorization = "Authorization"
	headerBearer        = "Bearer"

	UserValueOwnerID = "ownerId"
)

// AuthMiddleware checks HS256 bearer tokens issued by the account service.
// With an empty secret every request passes untouched.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (am *AuthMiddleware) Enabled() bool {
	return len(am.secret) > 0
}

// RequireOwner requires a valid token whose subject matches the owner id
// named in the query argument ownerArg, when that argument is present.
func (am *AuthMiddleware) RequireOwner(ownerArg string, handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !am.Enabled() {
			handler(ctx)
			return
		}

		subject, err := am.SubjectFromRequest(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Authentication failed")
			ctx.Error("Unauthorized", fasthttp.StatusUnauthorized)
			return
		}

		if owner := string(ctx.QueryArgs().Peek(ownerArg)); owner != "" && owner != subject {
			log.Error().Str("subject", subject).Str("ownerId", owner).Msg("Token subject does not own upload")
			ctx.Error("Forbidden", fasthttp.StatusForbidden)
			return
		}

		ctx.SetUserValue(UserValueOwnerID, subject)
		handler(ctx)
	}
}

func (am *AuthMiddleware) SubjectFromRequest(ctx *fasthttp.RequestCtx) (string, error) {
	token := string(ctx.QueryArgs().Peek("token"))
	if token == "" {
		var err error
		token, err = extractJWTFromAuthorizationHeader(string(ctx.Request.Header.Peek(headerAuthorization)))
		if err != nil {
			return "", err
		}
	}
	return am.ValidateJWT(token)
}

// ValidateJWT returns the subject of a valid token.
func (am *AuthMiddleware) ValidateJWT(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

func extractJWTFromAuthorizationHeader(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != headerBearer {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
