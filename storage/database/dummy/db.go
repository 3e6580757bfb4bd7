// Package dummydb is an in-memory store used by tests and the `memory` storage driver.
package dummydb

import (
	"sync"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// DB holds every table behind a single lock so that cross-table checks (foreign keys,
// partial unique indexes) are atomic with the write they guard.
type DB struct {
	sync.RWMutex

	user       map[string]*user.User
	course     map[string]*course.Course
	enrollment map[string]*course.Enrollment
	assignment map[string]*course.Assignment
	submission map[string]*lab.Submission
	grade      map[string]*lab.Grade

	failure error
}

func Open() (*DB, error) {
	db := &DB{
		user:       make(map[string]*user.User),
		course:     make(map[string]*course.Course),
		enrollment: make(map[string]*course.Enrollment),
		assignment: make(map[string]*course.Assignment),
		submission: make(map[string]*lab.Submission),
		grade:      make(map[string]*lab.Grade),
	}
	return db, nil
}

// Fail makes every following operation fail with a core.PersistenceError wrapping err,
// as an unreachable database would. Fail(nil) heals the store.
func (db *DB) Fail(err error) {
	db.Lock()
	defer db.Unlock()
	db.failure = err
}

// check must be called with the lock held.
func (db *DB) check(op string) error {
	return core.NewPersistenceError(db.failure, op)
}

func (db *DB) Close() error { return nil }
