package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type userApi struct {
	svc      user.Service
	tokens   *TokenIssuer
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	tokens *TokenIssuer,
	svc user.Service,
	validate *validator.Validate,
) {
	api := userApi{
		svc:      svc,
		tokens:   tokens,
		validate: validate,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	// authed endpoints
	g.GET("/me", api.me, jwt)
	g.GET("/users", api.query, jwt, lecturerMiddleware())
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(requestContext(ctx), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(requestContext(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(requestContext(ctx), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.TokenFor(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Home: usr.HomeRoute(), User: usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.tokens.refresh(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(requestContext(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}
