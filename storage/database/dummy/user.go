package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.user))
	for _, u := range repo.db.user {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("user.CheckEmailUniqueness"); err != nil {
		return err
	}

	for _, usr := range repo.db.user {
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("user.CreateUser"); err != nil {
		return user.User{}, err
	}

	for _, u := range repo.db.user {
		if u.Email == usr.Email {
			return user.User{}, core.NewConflictError(user.ErrEmailExists.Error())
		}
	}
	usr.ID = uuid.NewString()
	repo.db.user[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("user.GetUser"); err != nil {
		return user.User{}, err
	}

	if filter.ID != "" {
		if usr, ok := repo.db.user[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.user {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("user.QueryUsers"); err != nil {
		return nil, err
	}

	users := repo.query()
	if filter != nil {
		// users with search keyword matching any FullName, Email or MatricNumber ?
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			var filtered []user.User
			for _, u := range users {
				if strings.Contains(strings.ToLower(u.FullName), search) ||
					strings.Contains(strings.ToLower(u.Email), search) ||
					strings.Contains(strings.ToLower(u.MatricNumber), search) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		// users with any of the specified roles
		if len(filter.Roles) > 0 {
			var filtered []user.User
			for _, u := range users {
				if contains(filter.Roles, u.Role) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		if len(filter.IDs) > 0 {
			var filtered []user.User
			for _, u := range users {
				if contains(filter.IDs, u.ID) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
	}

	sortUsers(users, ordering)
	if users == nil {
		users = []user.User{}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("user.UpdateUser"); err != nil {
		return user.User{}, err
	}

	origUsr, ok := repo.db.user[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	updated := *origUsr
	if usr.PasswordHash != nil {
		updated.PasswordHash = usr.PasswordHash
	}
	updated.FullName = usr.FullName
	updated.Email = usr.Email
	updated.MatricNumber = usr.MatricNumber
	updated.Level = usr.Level
	updated.StaffID = usr.StaffID
	updated.Department = usr.Department
	updated.AvatarURL = usr.AvatarURL

	repo.db.user[usr.ID] = &updated
	return updated, nil
}

// sortUsers orders by full name unless told otherwise.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "full_name", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			var a, b string
			switch ord.Field {
			case "email":
				a, b = users[i].Email, users[j].Email
			case "created_at":
				a, b = users[i].CreatedAt.Format("20060102150405.000000000"), users[j].CreatedAt.Format("20060102150405.000000000")
			case "matric_number":
				a, b = users[i].MatricNumber, users[j].MatricNumber
			default:
				a, b = users[i].FullName, users[j].FullName
			}
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}

func contains(vals []string, v string) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}
