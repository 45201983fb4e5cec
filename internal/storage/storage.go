// Package storage provides the opt-in prediction history for the diabetes risk
// service. It uses BoltDB as the underlying storage engine.
//
// Only classifier outputs are stored. Input vectors are never written.
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for prediction records
	dbFileName        = "diabetes-risk.db"
)

// Store provides persistent storage for prediction records using BoltDB.
// Records are keyed by timestamp so that range queries and "latest N"
// listings are plain cursor walks.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance in dataPath. It initializes the BoltDB
// database and creates the predictions bucket.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// recordKey orders records by time; the bucket sequence breaks ties between
// records written in the same nanosecond.
func recordKey(ts time.Time, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

func timeKey(ts time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(ts.UnixNano()))
	return key
}

// getRecordsInRange walks the bucket from start to end (both inclusive) and
// applies fn to every value. Malformed records are skipped by fn.
func (s *Store) getRecordsInRange(bucketName string, start, end time.Time, fn func([]byte)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		endKey := timeKey(end)
		for k, v := c.Seek(timeKey(start)); k != nil && bytes.Compare(k[:8], endKey) <= 0; k, v = c.Next() {
			fn(v)
		}
		return nil
	})
}
