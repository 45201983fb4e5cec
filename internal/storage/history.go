package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// PredictionRecord is one stored classifier outcome.
type PredictionRecord struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	PredictedClass    int       `json:"predicted_class"`
	Label             string    `json:"label"`
	ProbabilityClass0 float64   `json:"probability_class_0"`
	ProbabilityClass1 float64   `json:"probability_class_1"`
	Backend           string    `json:"backend"`
	ModelVersion      string    `json:"model_version,omitempty"`
	Source            string    `json:"source,omitempty"` // web, api or form
}

// Append stores a prediction record. A zero Timestamp is set to now.
func (s *Store) Append(record PredictionRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		return b.Put(recordKey(record.Timestamp, seq), data)
	})
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]PredictionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		return []PredictionRecord{}, nil
	}

	records := make([]PredictionRecord, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var record PredictionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})
	return records, err
}

// Range returns records with timestamps in [start, end], oldest first.
func (s *Store) Range(start, end time.Time) ([]PredictionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}

	var records []PredictionRecord
	err := s.getRecordsInRange(predictionsBucket, start, end, func(data []byte) {
		var record PredictionRecord
		if json.Unmarshal(data, &record) == nil {
			records = append(records, record)
		}
	})
	return records, err
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// Prune deletes the oldest records so that at most keep remain. It returns
// the number of records removed.
func (s *Store) Prune(keep int) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		excess := b.Stats().KeyN - keep
		if excess <= 0 {
			return nil
		}

		// Collect first; deleting while iterating a cursor skips keys.
		keys := make([][]byte, 0, excess)
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(keys) < excess; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete record: %w", err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
