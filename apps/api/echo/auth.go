package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

const (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	tokenAudience   = "Babcock VPL"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"` // -> home route of the frontend
}

// TokenIssuer signs and checks the tokens of the API.
type TokenIssuer struct {
	key          []byte
	issuer       string
	expiration   time.Duration
	refreshLimit time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:          []byte(conf.SecretKey),
		issuer:       conf.AppName,
		expiration:   conf.Server.JWTExpirationDelta,
		refreshLimit: conf.Server.JWTRefreshExpirationDelta,
	}
}

// jwtConfig is the JWT auth middleware config.
func (ti *TokenIssuer) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// Claims returns the claims of a token for usr. origIat is kept across refreshes.
func (ti *TokenIssuer) Claims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ti.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// Generate generates a signed JWT token string representing the user Claims.
func (ti *TokenIssuer) Generate(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// TokenFor generates a fresh token for usr.
func (ti *TokenIssuer) TokenFor(usr user.User) (string, error) {
	return ti.Generate(ti.Claims(usr))
}

func (ti *TokenIssuer) refresh(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshLimit)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.Generate(ti.Claims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(requestContext(ctx), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}

func requestContext(ctx echo.Context) context.Context {
	return ctx.Request().Context()
}
