package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

const userColumns = `id, email, full_name, role, matric_number, level, staff_id, department, avatar_url, password_hash, created_at`

// sortable user columns
var userOrderings = map[string]string{
	"full_name":     "full_name",
	"email":         "email",
	"created_at":    "created_at",
	"matric_number": "matric_number",
}

type userRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	FullName     string      `db:"full_name"`
	Role         string      `db:"role"`
	MatricNumber null.String `db:"matric_number"`
	Level        null.String `db:"level"`
	StaffID      null.String `db:"staff_id"`
	Department   string      `db:"department"`
	AvatarURL    null.String `db:"avatar_url"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		FullName:     usr.FullName,
		Role:         usr.Role,
		MatricNumber: null.NewString(usr.MatricNumber, usr.MatricNumber != ""),
		Level:        null.NewString(usr.Level, usr.Level != ""),
		StaffID:      null.NewString(usr.StaffID, usr.StaffID != ""),
		Department:   usr.Department,
		AvatarURL:    null.NewString(usr.AvatarURL, usr.AvatarURL != ""),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		Role:         r.Role,
		MatricNumber: r.MatricNumber.String,
		Level:        r.Level.String,
		StaffID:      r.StaffID.String,
		Department:   r.Department,
		AvatarURL:    r.AvatarURL.String,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var taken bool
	err := repo.db.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1)`, email)
	if err != nil {
		return dbError(err, "user.CheckEmailUniqueness", nil)
	}
	if taken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.NewString()
	var row userRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :email, :full_name, :role, :matric_number, :level, :staff_id, :department, :avatar_url, :password_hash, :created_at)
		RETURNING `+userColumns,
		newUserRow(usr),
	)
	if err != nil {
		return user.User{}, dbError(err, "user.CreateUser", nil)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		err error
	)
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE email = $1`, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, dbError(err, "user.GetUser", user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(matric_number, '')) LIKE ?)", pattern, pattern, pattern)
		}
		if len(filter.Roles) > 0 {
			if err := w.in("role", filter.Roles); err != nil {
				return nil, dbError(err, "user.QueryUsers", nil)
			}
		}
		if len(filter.IDs) > 0 {
			if err := w.in("id::text", filter.IDs); err != nil {
				return nil, dbError(err, "user.QueryUsers", nil)
			}
		}
	}

	q, args := w.build(repo.db, `SELECT `+userColumns+` FROM "user"`, orderBy(ordering, userOrderings, "full_name ASC"))
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "user.QueryUsers", nil)
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	var updated userRow
	err := namedGet(ctx, repo.db, &updated, `
		UPDATE "user" SET
			email = :email,
			full_name = :full_name,
			matric_number = :matric_number,
			level = :level,
			staff_id = :staff_id,
			department = :department,
			avatar_url = :avatar_url,
			password_hash = COALESCE(:password_hash, password_hash)
		WHERE id = :id
		RETURNING `+userColumns,
		row,
	)
	if err != nil {
		return user.User{}, dbError(err, "user.UpdateUser", user.ErrNotFound)
	}
	return updated.toUser(), nil
}

// orderBy builds an ORDER BY clause out of whitelisted columns only.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	terms := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			terms = append(terms, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(terms) == 0 {
		return "ORDER BY " + fallback
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}
