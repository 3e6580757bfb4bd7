// Package boltdb implements the repositories on a single bbolt file, for small single-node deployments.
package boltdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

var (
	bucketUsers       = []byte("users")
	bucketUserEmails  = []byte("user_emails") // email -> user id
	bucketCourses     = []byte("courses")
	bucketEnrollments = []byte("enrollments")
	bucketAssignments = []byte("assignments")
	bucketSubmissions = []byte("submissions")
	bucketSubmitKeys  = []byte("submission_keys") // assignment id:student id -> submission id
	bucketGrades      = []byte("grades")
	bucketGradeKeys   = []byte("grade_keys") // submission id -> grade id

	allBuckets = [][]byte{
		bucketUsers, bucketUserEmails, bucketCourses, bucketEnrollments, bucketAssignments,
		bucketSubmissions, bucketSubmitKeys, bucketGrades, bucketGradeKeys,
	}
)

// Store is a bbolt file. bbolt allows a single writer, which makes every read-check-write
// done inside one Update atomic.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the file at path along with its buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating bolt directory")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction. Errors already classified by the repositories
// pass through; anything else becomes a core.PersistenceError.
func (s *Store) update(op string, fn func(tx *bbolt.Tx) error) error {
	return classify(s.db.Update(fn), op)
}

func (s *Store) view(op string, fn func(tx *bbolt.Tx) error) error {
	return classify(s.db.View(fn), op)
}

func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	switch errors.Cause(err).(type) {
	case *core.ValidationError, *core.NotFoundError, *core.ConflictError, *core.PersistenceError:
		return err
	}
	return core.NewPersistenceError(err, op)
}

func put[T any](tx *bbolt.Tx, bucket []byte, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, key)
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// get returns notFound when key is absent.
func get[T any](tx *bbolt.Tx, bucket []byte, key string, notFound error) (T, error) {
	var out T
	v := tx.Bucket(bucket).Get([]byte(key))
	if v == nil {
		return out, notFound
	}
	if err := json.Unmarshal(v, &out); err != nil {
		return out, errors.Wrapf(err, "decoding %s/%s", bucket, key)
	}
	return out, nil
}

func exists(tx *bbolt.Tx, bucket []byte, key string) bool {
	return tx.Bucket(bucket).Get([]byte(key)) != nil
}

// list decodes every value of bucket for which keep returns true.
func list[T any](tx *bbolt.Tx, bucket []byte, keep func(T) bool) ([]T, error) {
	out := make([]T, 0)
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return errors.Wrapf(err, "decoding %s/%s", bucket, k)
		}
		if keep == nil || keep(item) {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// index reads a secondary index entry, "" when absent.
func index(tx *bbolt.Tx, bucket []byte, key string) string {
	return string(tx.Bucket(bucket).Get([]byte(key)))
}

func setIndex(tx *bbolt.Tx, bucket []byte, key, id string) error {
	return tx.Bucket(bucket).Put([]byte(key), []byte(id))
}

func contains(vals []string, v string) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}
