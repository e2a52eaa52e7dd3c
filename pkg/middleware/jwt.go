package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/tern-dev/tern/pkg/handler"
)

// ErrNoKey is returned by JWT when neither Secret nor PublicKey is set.
var ErrNoKey = errors.New("middleware: jwt needs a secret or public key")

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	// Secret verifies HS256/384/512 tokens.
	Secret []byte

	// PublicKey verifies RS256/384/512 tokens.
	PublicKey *rsa.PublicKey

	// Issuer and Audience are validated when set.
	Issuer   string
	Audience string

	// SubjectClaim names the claim used as Identity.Subject. Default: "sub".
	SubjectClaim string

	// Optional lets requests without an Authorization header through
	// without an identity.
	Optional bool
}

// JWT validates "Authorization: Bearer" tokens and attaches the claims as
// the request Identity. Invalid or missing tokens get a 401.
func JWT(config JWTConfig) (handler.Middleware, error) {
	if config.Secret == nil && config.PublicKey == nil {
		return handler.Middleware{}, ErrNoKey
	}
	if config.SubjectClaim == "" {
		config.SubjectClaim = "sub"
	}

	var methods []string
	if config.Secret != nil {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	if config.PublicKey != nil {
		methods = append(methods, "RS256", "RS384", "RS512")
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods)}
	if config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(config.Audience))
	}
	parser := jwtlib.NewParser(opts...)

	keyFunc := func(token *jwtlib.Token) (any, error) {
		switch token.Method.(type) {
		case *jwtlib.SigningMethodHMAC:
			return config.Secret, nil
		case *jwtlib.SigningMethodRSA:
			return config.PublicKey, nil
		}
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}

	mw := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		header := req.Header.Get("Authorization")
		if header == "" && config.Optional {
			return handler.Next(), nil
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return handler.Respond(unauthorized("missing bearer token")), nil
		}

		claims := jwtlib.MapClaims{}
		token, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !token.Valid {
			return handler.Respond(unauthorized("invalid token")), nil
		}

		id := &handler.Identity{Claims: make(map[string]string, len(claims))}
		for k, v := range claims {
			switch v := v.(type) {
			case string:
				id.Claims[k] = v
			case float64:
				id.Claims[k] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				id.Claims[k] = fmt.Sprint(v)
			}
		}
		id.Subject = id.Claims[config.SubjectClaim]
		if id.Subject == "" {
			return handler.Respond(unauthorized("token has no subject")), nil
		}
		return handler.Replace(req.WithIdentity(id)), nil
	}).Named("jwt")

	return mw, nil
}

func unauthorized(msg string) *handler.Response {
	return handler.Text(http.StatusUnauthorized, msg).WithHeader("WWW-Authenticate", `Bearer realm="tern"`)
}
