package boltdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// userRecord keeps the password hash, which user.User never serializes.
type userRecord struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

func newUserRecord(usr user.User) userRecord {
	return userRecord{User: usr, PasswordHash: usr.PasswordHash}
}

func (r userRecord) toUser() user.User {
	usr := r.User
	usr.PasswordHash = r.PasswordHash
	return usr
}

type userRepository struct {
	store *Store
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(store *Store) user.Repository {
	return &userRepository{store: store}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string) error {
	return repo.store.view("user.CheckEmailUniqueness", func(tx *bbolt.Tx) error {
		if exists(tx, bucketUserEmails, email) {
			return user.ErrEmailExists
		}
		return nil
	})
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.store.update("user.CreateUser", func(tx *bbolt.Tx) error {
		if exists(tx, bucketUserEmails, usr.Email) {
			return core.NewConflictError(user.ErrEmailExists.Error())
		}
		usr.ID = uuid.NewString()
		if err := put(tx, bucketUsers, usr.ID, newUserRecord(usr)); err != nil {
			return err
		}
		return setIndex(tx, bucketUserEmails, usr.Email, usr.ID)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	var usr user.User
	err := repo.store.view("user.GetUser", func(tx *bbolt.Tx) error {
		id := filter.ID
		if id == "" && filter.Email != "" {
			id = index(tx, bucketUserEmails, filter.Email)
		}
		if id == "" {
			return user.ErrNotFound
		}
		rec, err := get[userRecord](tx, bucketUsers, id, user.ErrNotFound)
		usr = rec.toUser()
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var recs []userRecord
	err := repo.store.view("user.QueryUsers", func(tx *bbolt.Tx) error {
		var err error
		recs, err = list(tx, bucketUsers, func(r userRecord) bool { return matchUser(r.User, filter) })
		return err
	})
	if err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(recs))
	for _, r := range recs {
		users = append(users, r.toUser())
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	var updated user.User
	err := repo.store.update("user.UpdateUser", func(tx *bbolt.Tx) error {
		rec, err := get[userRecord](tx, bucketUsers, usr.ID, user.ErrNotFound)
		if err != nil {
			return err
		}
		orig := rec.toUser()
		if usr.Email != orig.Email {
			if exists(tx, bucketUserEmails, usr.Email) {
				return core.NewConflictError(user.ErrEmailExists.Error())
			}
			if err = tx.Bucket(bucketUserEmails).Delete([]byte(orig.Email)); err != nil {
				return err
			}
			if err = setIndex(tx, bucketUserEmails, usr.Email, usr.ID); err != nil {
				return err
			}
		}

		updated = orig
		if usr.PasswordHash != nil {
			updated.PasswordHash = usr.PasswordHash
		}
		updated.Email = usr.Email
		updated.FullName = usr.FullName
		updated.MatricNumber = usr.MatricNumber
		updated.Level = usr.Level
		updated.StaffID = usr.StaffID
		updated.Department = usr.Department
		updated.AvatarURL = usr.AvatarURL
		return put(tx, bucketUsers, usr.ID, newUserRecord(updated))
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if search := strings.ToLower(filter.Search); search != "" &&
		!strings.Contains(strings.ToLower(u.FullName), search) &&
		!strings.Contains(strings.ToLower(u.Email), search) &&
		!strings.Contains(strings.ToLower(u.MatricNumber), search) {
		return false
	}
	if len(filter.Roles) > 0 && !contains(filter.Roles, u.Role) {
		return false
	}
	if len(filter.IDs) > 0 && !contains(filter.IDs, u.ID) {
		return false
	}
	return true
}

// sortUsers orders by full name unless told otherwise.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "full_name", Ascending: true}}
	}
	key := func(u user.User, field string) string {
		switch field {
		case "email":
			return u.Email
		case "created_at":
			return u.CreatedAt.UTC().Format("20060102150405.000000000")
		case "matric_number":
			return u.MatricNumber
		}
		return u.FullName
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := key(users[i], ord.Field), key(users[j], ord.Field)
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
