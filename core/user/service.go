package user

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("user")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrInvalidCredentials  = core.NewValidationError(errors.New("invalid credentials"))
	errRoleChangeForbidden = errors.New("a user's role cannot be changed")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when another user already owns email.
		CheckEmailUniqueness(ctx context.Context, email string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser returns ErrNotFound when no user matches.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		// UpdateUser saves every field but ID, Role and CreatedAt.
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		SetRole(usr User, role string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr := User{
		Email:      nu.Email,
		FullName:   nu.FullName,
		Role:       nu.Role,
		Department: nu.Department,
		CreatedAt:  time.Now().UTC(),
	}
	switch usr.Role {
	case RoleStudent:
		usr.MatricNumber = nu.MatricNumber
		usr.Level = nu.Level
	case RoleLecturer:
		usr.StaffID = nu.StaffID
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole exists so that callers get an explicit error: roles are fixed at signup.
func (svc *service) SetRole(usr User, role string) error {
	if usr.Role == role {
		return nil
	}
	return core.NewValidationError(errRoleChangeForbidden, core.FieldError{Field: "role", Error: errRoleChangeForbidden.Error()})
}
