package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/thunder/pkg/store/models"
)

// Key layout:
//
//	notice:{messageID} -> JSON(RestartNotice)
//	token:{token}      -> JSON(AccessToken), with a Badger TTL at ExpiresAt
const (
	prefixNotice = "notice:"
	prefixToken  = "token:"
)

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db  *badgerdb.DB
	now func() time.Time
}

// NewBadgerStore opens (or creates) the Badger database described by cfg.
func NewBadgerStore(cfg *BadgerConfig) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func noticeKey(messageID int64) []byte {
	return []byte(prefixNotice + strconv.FormatInt(messageID, 10))
}

func tokenKey(token string) []byte {
	return []byte(prefixToken + token)
}

// scanPrefix calls fn with the key and decoded value bytes of every entry
// under prefix.
func (s *BadgerStore) scanPrefix(txn *badgerdb.Txn, prefix string, fn func(key, val []byte) error) error {
	it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) GetRestartNotice(ctx context.Context) (*models.RestartNotice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var latest *models.RestartNotice
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return s.scanPrefix(txn, prefixNotice, func(_, val []byte) error {
			var n models.RestartNotice
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("failed to unmarshal restart notice: %w", err)
			}
			if latest == nil || n.CreatedAt.After(latest.CreatedAt) ||
				(n.CreatedAt.Equal(latest.CreatedAt) && n.MessageID > latest.MessageID) {
				latest = &n
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *BadgerStore) SaveRestartNotice(ctx context.Context, n *models.RestartNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal restart notice: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(noticeKey(n.MessageID), data)
	})
}

func (s *BadgerStore) DeleteRestartNotice(ctx context.Context, messageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(noticeKey(messageID))
	})
}

func (s *BadgerStore) CreateToken(ctx context.Context, t *models.AccessToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := tokenKey(t.Token)
		if _, err := txn.Get(key); err == nil {
			return models.ErrDuplicateToken
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		e := badgerdb.NewEntry(key, data)
		// expire an hour after ExpiresAt if cleanup never runs
		if ttl := time.Until(t.ExpiresAt); ttl > 0 {
			e = e.WithTTL(ttl + time.Hour)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) GetToken(ctx context.Context, token string) (*models.AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t models.AccessToken
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(tokenKey(token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, models.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BadgerStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var expired [][]byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return s.scanPrefix(txn, prefixToken, func(key, val []byte) error {
			var t models.AccessToken
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("failed to unmarshal token: %w", err)
			}
			if t.Expired(now) {
				expired = append(expired, key)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range expired {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete token: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush token deletes: %w", err)
	}
	return int64(len(expired)), nil
}

// Healthcheck verifies the database still accepts transactions.
func (s *BadgerStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
