// Package bbolt provides a BBolt-backed storage.Store for single-node
// deployments. Records are stored as JSON with secondary index buckets for
// email, reset-token, and per-user session lookups.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Cam1McH/RainienShare-sub001/storage"
)

var (
	bucketUsers          = []byte("users")
	bucketUsersByEmail   = []byte("users_by_email")
	bucketSessions       = []byte("sessions")
	bucketSessionsByUser = []byte("sessions_by_user")
	bucketResetTokens    = []byte("reset_tokens")
	bucketLoginAttempts  = []byte("login_attempts")
)

// Store implements storage.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database, creating the
// required buckets if they do not exist.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketUsers, bucketUsersByEmail, bucketSessions,
			bucketSessionsByUser, bucketResetTokens, bucketLoginAttempts,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// userJSON is the persisted shape. storage.User hides secret columns from
// its JSON form, so the bbolt backend wraps it with the full field set.
type userJSON struct {
	storage.User
	PasswordHash     string     `json:"password_hash"`
	TOTPSecret       string     `json:"totp_secret,omitempty"`
	LoginAttempts    int        `json:"login_attempts"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	ResetToken       string     `json:"reset_token,omitempty"`
	ResetTokenExpiry *time.Time `json:"reset_token_expiry,omitempty"`
}

func marshalUser(u *storage.User) ([]byte, error) {
	return json.Marshal(userJSON{
		User:             *u,
		PasswordHash:     u.PasswordHash,
		TOTPSecret:       u.TOTPSecret,
		LoginAttempts:    u.LoginAttempts,
		LockedUntil:      u.LockedUntil,
		ResetToken:       u.ResetToken,
		ResetTokenExpiry: u.ResetTokenExpiry,
	})
}

func unmarshalUser(data []byte) (*storage.User, error) {
	var w userJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	u := w.User
	u.PasswordHash = w.PasswordHash
	u.TOTPSecret = w.TOTPSecret
	u.LoginAttempts = w.LoginAttempts
	u.LockedUntil = w.LockedUntil
	u.ResetToken = w.ResetToken
	u.ResetTokenExpiry = w.ResetTokenExpiry
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u *storage.User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketUsersByEmail)
		if emails.Get([]byte(u.Email)) != nil {
			return storage.ErrDuplicateEmail
		}
		seq, err := tx.Bucket(bucketUsers).NextSequence()
		if err != nil {
			return err
		}
		u.ID = int64(seq)
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		if err := s.writeUser(tx, u); err != nil {
			return err
		}
		return emails.Put([]byte(u.Email), itob(u.ID))
	})
}

func (s *Store) writeUser(tx *bbolt.Tx, u *storage.User) error {
	data, err := marshalUser(u)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put(itob(u.ID), data)
}

func (s *Store) readUser(tx *bbolt.Tx, id int64) (*storage.User, error) {
	data := tx.Bucket(bucketUsers).Get(itob(id))
	if data == nil {
		return nil, storage.ErrNotFound
	}
	return unmarshalUser(data)
}

func (s *Store) UserByEmail(_ context.Context, email string) (*storage.User, error) {
	var u *storage.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		idKey := tx.Bucket(bucketUsersByEmail).Get([]byte(email))
		if idKey == nil {
			return storage.ErrNotFound
		}
		data := tx.Bucket(bucketUsers).Get(idKey)
		if data == nil {
			return storage.ErrNotFound
		}
		var err error
		u, err = unmarshalUser(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserByID(_ context.Context, id int64) (*storage.User, error) {
	var u *storage.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		u, err = s.readUser(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// updateUser applies fn to a user record inside a single write transaction.
func (s *Store) updateUser(userID int64, fn func(u *storage.User) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		u, err := s.readUser(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		return s.writeUser(tx, u)
	})
}

func (s *Store) UpdateTwoFactor(_ context.Context, userID int64, secret string, enabled, verified bool) error {
	return s.updateUser(userID, func(u *storage.User) error {
		u.TOTPSecret = secret
		u.TwoFactorEnabled = enabled
		u.TwoFactorVerified = verified
		return nil
	})
}

func (s *Store) IncrementLoginAttempts(_ context.Context, userID int64) (int, error) {
	var count int
	err := s.updateUser(userID, func(u *storage.User) error {
		u.LoginAttempts++
		count = u.LoginAttempts
		return nil
	})
	return count, err
}

func (s *Store) ResetLoginAttempts(_ context.Context, userID int64) error {
	return s.updateUser(userID, func(u *storage.User) error {
		u.LoginAttempts = 0
		return nil
	})
}

func (s *Store) LockUntil(_ context.Context, userID int64, until time.Time) error {
	return s.updateUser(userID, func(u *storage.User) error {
		t := until
		u.LockedUntil = &t
		return nil
	})
}

func (s *Store) SetResetToken(_ context.Context, userID int64, token string, expiry time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		u, err := s.readUser(tx, userID)
		if err != nil {
			return err
		}
		tokens := tx.Bucket(bucketResetTokens)
		if u.ResetToken != "" {
			if err := tokens.Delete([]byte(u.ResetToken)); err != nil {
				return err
			}
		}
		u.ResetToken = token
		e := expiry
		u.ResetTokenExpiry = &e
		if err := s.writeUser(tx, u); err != nil {
			return err
		}
		return tokens.Put([]byte(token), itob(userID))
	})
}

func (s *Store) ConsumeResetToken(_ context.Context, token, newPasswordHash string, now time.Time) (int64, error) {
	var userID int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		tokens := tx.Bucket(bucketResetTokens)
		idKey := tokens.Get([]byte(token))
		if idKey == nil {
			return storage.ErrNotFound
		}
		id := int64(binary.BigEndian.Uint64(idKey))
		u, err := s.readUser(tx, id)
		if err != nil {
			return err
		}
		if u.ResetToken != token || u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
			return storage.ErrNotFound
		}
		u.PasswordHash = newPasswordHash
		u.ResetToken = ""
		u.ResetTokenExpiry = nil
		u.LoginAttempts = 0
		u.LockedUntil = nil
		if err := s.writeUser(tx, u); err != nil {
			return err
		}
		if err := tokens.Delete([]byte(token)); err != nil {
			return err
		}
		userID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func sessionUserKey(userID int64, token string) []byte {
	return append(itob(userID), []byte(token)...)
}

func (s *Store) CreateSession(_ context.Context, sess *storage.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		cp := *sess
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketSessions).Put([]byte(cp.Token), data); err != nil {
			return err
		}
		return tx.Bucket(bucketSessionsByUser).Put(sessionUserKey(cp.UserID, cp.Token), nil)
	})
}

func (s *Store) SessionByToken(_ context.Context, token string) (*storage.Session, error) {
	var sess storage.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(token))
		if data == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		data := sessions.Get([]byte(token))
		if data == nil {
			return nil
		}
		var sess storage.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return err
		}
		if err := sessions.Delete([]byte(token)); err != nil {
			return err
		}
		return tx.Bucket(bucketSessionsByUser).Delete(sessionUserKey(sess.UserID, token))
	})
}

func (s *Store) DeleteUserSessions(_ context.Context, userID int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketSessionsByUser)
		sessions := tx.Bucket(bucketSessions)
		prefix := itob(userID)

		c := index.Cursor()
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && len(k) > 8 && string(k[:8]) == string(prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := sessions.Delete(k[8:]); err != nil {
				return err
			}
			if err := index.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AppendLoginAttempt(_ context.Context, a *storage.LoginAttempt) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLoginAttempts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		cp := *a
		if cp.At.IsZero() {
			cp.At = time.Now().UTC()
		}
		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return b.Put(itob(int64(seq)), data)
	})
}
