// Package storage keeps downloaded model artifacts in a BoltDB file so a
// restart does not have to hit the network again.
//
// Only artifacts are persisted. Observations and feature vectors never
// touch disk.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"forest-cover/internal/common"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	artifactsBucket = "artifacts"     // raw artifact bytes by source key
	infoBucket      = "artifact_info" // ArtifactInfo JSON by source key
)

// ArtifactInfo describes one stored artifact.
type ArtifactInfo struct {
	Key      string    `json:"key"`
	Size     int       `json:"size"`
	SHA256   string    `json:"sha256"`
	StoredAt time.Time `json:"stored_at"`
}

// Store provides persistent storage for model artifacts using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, common.DefaultArtifactDBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return fmt.Errorf("create artifacts bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(infoBucket)); err != nil {
			return fmt.Errorf("create artifact info bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutArtifact stores data under key, replacing any previous artifact.
func (s *Store) PutArtifact(key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("artifact key is empty")
	}
	sum := sha256.Sum256(data)
	info := ArtifactInfo{
		Key:      key,
		Size:     len(data),
		SHA256:   hex.EncodeToString(sum[:]),
		StoredAt: time.Now().UTC(),
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal artifact info: %w", err)
		}
		if err := tx.Bucket([]byte(artifactsBucket)).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(infoBucket)).Put([]byte(key), meta)
	})
}

// GetArtifact returns the artifact stored under key. A stored artifact whose
// checksum no longer matches is dropped and reported as missing.
func (s *Store) GetArtifact(key string) ([]byte, bool, error) {
	var data []byte
	var info ArtifactInfo
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(artifactsBucket)).Get([]byte(key))
		if v == nil {
			return nil
		}
		// bbolt values are only valid inside the transaction
		data = append([]byte(nil), v...)
		found = true

		if meta := tx.Bucket([]byte(infoBucket)).Get([]byte(key)); meta != nil {
			if err := json.Unmarshal(meta, &info); err != nil {
				return fmt.Errorf("unmarshal artifact info: %w", err)
			}
		}
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}

	sum := sha256.Sum256(data)
	if info.SHA256 != hex.EncodeToString(sum[:]) {
		log.Warn().Str("key", key).Msg("stored artifact failed checksum, discarding")
		if err := s.DeleteArtifact(key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return data, true, nil
}

// ArtifactInfo returns the metadata of the artifact stored under key.
func (s *Store) ArtifactInfo(key string) (ArtifactInfo, bool, error) {
	var info ArtifactInfo
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(infoBucket)).Get([]byte(key))
		if meta == nil {
			return nil
		}
		found = true
		return json.Unmarshal(meta, &info)
	})
	return info, found, err
}

// ListArtifacts returns the metadata of every stored artifact ordered by key.
func (s *Store) ListArtifacts() ([]ArtifactInfo, error) {
	var infos []ArtifactInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(infoBucket)).ForEach(func(k, v []byte) error {
			var info ArtifactInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return nil // skip malformed records
			}
			infos = append(infos, info)
			return nil
		})
	})
	return infos, err
}

// DeleteArtifact removes the artifact stored under key.
func (s *Store) DeleteArtifact(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(artifactsBucket)).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket([]byte(infoBucket)).Delete([]byte(key))
	})
}
