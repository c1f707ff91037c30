// Package localstore persists the bearer tokens and the last connected
// account on the local machine in a bbolt file.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const fileMode os.FileMode = 0600

var (
	bucketTokens  = []byte("tokens")
	bucketSession = []byte("session")

	keyAccount = []byte("account")
)

var (
	// ErrNotFound is returned when no value is stored under the key.
	ErrNotFound = errors.New("localstore: not found")
	// ErrFilePathIsBlank is returned by Open for an empty path.
	ErrFilePathIsBlank = errors.New("localstore: file path is blank")
)

// Store is a small key/value file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store file and its buckets.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrFilePathIsBlank
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("localstore: create dir: %w", err)
		}
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketTokens, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the bearer token saved for role.
func (s *Store) Token(role string) (string, error) {
	return s.get(bucketTokens, []byte(role))
}

// SetToken saves the bearer token for role. An empty token deletes it.
func (s *Store) SetToken(role, token string) error {
	return s.put(bucketTokens, []byte(role), token)
}

// Roles lists the roles that have a saved token.
func (s *Store) Roles() ([]string, error) {
	var roles []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).ForEach(func(k, _ []byte) error {
			roles = append(roles, string(k))
			return nil
		})
	})
	return roles, err
}

// Account returns the last connected wallet account.
func (s *Store) Account() (string, error) {
	return s.get(bucketSession, keyAccount)
}

// SetAccount records the connected wallet account. Empty clears it.
func (s *Store) SetAccount(account string) error {
	return s.put(bucketSession, keyAccount, account)
}

func (s *Store) get(bucket, key []byte) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (s *Store) put(bucket, key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if value == "" {
			return b.Delete(key)
		}
		return b.Put(key, []byte(value))
	})
}
