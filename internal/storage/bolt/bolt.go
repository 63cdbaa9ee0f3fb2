package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var (
	bucketHosts      = []byte("hosts")
	bucketNotifyLogs = []byte("notify_logs")
	errStop          = errors.New("stop iteration")
)

// Store is a BoltDB-backed Store implementation.
type Store struct {
	db *bolt.DB
}

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketHosts, bucketNotifyLogs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertHost stores or updates a host keyed by host.Key.
func (s *Store) UpsertHost(ctx context.Context, host *model.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if host.Key == "" {
		return errors.New("host key is required")
	}
	now := time.Now().UTC()
	if host.CreatedAt.IsZero() {
		host.CreatedAt = now
	}
	host.UpdatedAt = now
	payload, err := json.Marshal(host)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).Put([]byte(host.Key), payload)
	})
}

// GetHost fetches a host by key.
func (s *Store) GetHost(ctx context.Context, key string) (*model.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var host *model.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHosts).Get([]byte(key))
		if v == nil {
			return nil
		}
		host = &model.Host{}
		return json.Unmarshal(v, host)
	})
	if err != nil {
		return nil, err
	}
	if host == nil {
		return nil, storage.ErrNotFound
	}
	return host, nil
}

// GetHostByAddress fetches the first host whose address matches, ignoring
// case.
func (s *Store) GetHostByAddress(ctx context.Context, address string) (*model.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *model.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(_, v []byte) error {
			var host model.Host
			if err := json.Unmarshal(v, &host); err != nil {
				return err
			}
			if strings.EqualFold(host.Address, address) {
				result = &host
				return errStop
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// ListHosts returns all hosts in key order.
func (s *Store) ListHosts(ctx context.Context) ([]*model.Host, error) {
	return s.listHosts(ctx, func(*model.Host) bool { return true })
}

// ListActiveHosts returns ACTIVE hosts only.
func (s *Store) ListActiveHosts(ctx context.Context) ([]*model.Host, error) {
	return s.listHosts(ctx, (*model.Host).Active)
}

func (s *Store) listHosts(ctx context.Context, filter func(*model.Host) bool) ([]*model.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var hosts []*model.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(_, v []byte) error {
			host := &model.Host{}
			if err := json.Unmarshal(v, host); err != nil {
				return err
			}
			if filter(host) {
				hosts = append(hosts, host)
			}
			return nil
		})
	})
	return hosts, err
}

// AppendNotifyLog stores a delivery log entry under the next sequence id.
func (s *Store) AppendNotifyLog(ctx context.Context, log *model.NotifyLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketNotifyLogs)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		log.ID = id
		payload, err := json.Marshal(log)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, payload)
	})
}

// ListNotifyLogs returns all delivery logs in insertion order.
func (s *Store) ListNotifyLogs(ctx context.Context) ([]*model.NotifyLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var logs []*model.NotifyLog
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifyLogs).ForEach(func(_, v []byte) error {
			log := &model.NotifyLog{}
			if err := json.Unmarshal(v, log); err != nil {
				return err
			}
			logs = append(logs, log)
			return nil
		})
	})
	return logs, err
}
