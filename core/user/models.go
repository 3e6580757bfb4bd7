package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

// Roles
const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
)

const defaultDepartment = "Computer Science"

// home routes
const (
	HomeStudent  = "/student"
	HomeLecturer = "/lecturer"
	HomeLogin    = "/login"
)

var (
	AllRoles = []string{RoleStudent, RoleLecturer}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Lecturer", Value: RoleLecturer},
	}
)

// ResolveHomeRoute returns the landing page of a user with the given role once authentication settles.
func ResolveHomeRoute(role string) string {
	switch role {
	case RoleLecturer:
		return HomeLecturer
	case RoleStudent:
		return HomeStudent
	default:
		return HomeLogin
	}
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is immutable in its Role once created.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	MatricNumber string    `json:"matric_number,omitempty"` // students only
	Level        string    `json:"level,omitempty"`         // students only
	StaffID      string    `json:"staff_id,omitempty"`      // lecturers only
	Department   string    `json:"department"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool  { return u.Role == RoleStudent }
func (u *User) IsLecturer() bool { return u.Role == RoleLecturer }

// HomeRoute is the landing page of the user.
func (u *User) HomeRoute() string { return ResolveHomeRoute(u.Role) }

// NewUser contains information needed to sign a new User up.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"full_name" validate:"required,notblank"`
	Role            string `json:"role" validate:"required,role"`
	MatricNumber    string `json:"matric_number" validate:"omitempty,matric"`
	Level           string `json:"level" validate:"omitempty,oneof=100 200 300 400 500"`
	StaffID         string `json:"staff_id" validate:"omitempty,max=32"`
	Department      string `json:"department" validate:"omitempty,max=255"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.MatricNumber = core.CleanString(nu.MatricNumber)
	nu.StaffID = core.CleanString(nu.StaffID)
	nu.Department = core.CleanString(nu.Department)
	if nu.Department == "" {
		nu.Department = defaultDepartment
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// Validate checks the new password of usr against the password policy.
func (pr *PasswordReset) Validate(validate *validator.Validate, usr User) error {
	pr.Email = usr.Email
	pr.fullName = usr.FullName
	return validate.Struct(pr)
}

type QueryFilter struct {
	Search string   `query:"search"` // case-insensitive match on FullName, Email or MatricNumber
	Roles  []string `query:"role"`
	IDs    []string `query:"id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID    string
	Email string
}
