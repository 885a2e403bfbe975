package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Lllllllleong/researchdigest/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	sessionsBucket  = []byte("sessions")
	documentsBucket = []byte("documents")
)

// Bolt is a single-file Store used for local runs and tests.
// Documents are keyed "<sessionID>/<documentID>" so a prefix scan lists a session.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sessionsBucket, documentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Bolt{db: db, now: time.Now}, nil
}

func (b *Bolt) CreateSession(_ context.Context, s *models.Session) error {
	if s.ID == "" {
		return fmt.Errorf("create session: empty id")
	}
	now := b.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return b.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(sessionsBucket), []byte(s.ID), s)
	})
}

func (b *Bolt) GetSession(_ context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := b.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(sessionsBucket), []byte(id), &s)
	})
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	s.ID = id
	return &s, nil
}

func (b *Bolt) UpdateSession(_ context.Context, id string, u models.SessionUpdate) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(sessionsBucket)
		var s models.Session
		if err := getJSON(bkt, []byte(id), &s); err != nil {
			return err
		}
		u.Apply(&s, b.now())
		return putJSON(bkt, []byte(id), &s)
	})
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

func (b *Bolt) CreateDocument(_ context.Context, d *models.Document) error {
	if d.ID == "" || d.SessionID == "" {
		return fmt.Errorf("create document: id and session id are required")
	}
	now := b.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(sessionsBucket).Get([]byte(d.SessionID)) == nil {
			return fmt.Errorf("create document for session %s: %w", d.SessionID, ErrNotFound)
		}
		return putJSON(tx.Bucket(documentsBucket), documentKey(d.SessionID, d.ID), d)
	})
}

func (b *Bolt) ListDocuments(_ context.Context, sessionID string) ([]*models.Document, error) {
	prefix := []byte(sessionID + "/")
	var docs []*models.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(documentsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var d models.Document
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decode document %s: %w", k, err)
			}
			d.ID = string(k[len(prefix):])
			docs = append(docs, &d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents for session %s: %w", sessionID, err)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].OriginalFilename != docs[j].OriginalFilename {
			return docs[i].OriginalFilename < docs[j].OriginalFilename
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (b *Bolt) UpdateDocument(_ context.Context, sessionID, documentID string, u models.DocumentUpdate) error {
	key := documentKey(sessionID, documentID)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(documentsBucket)
		var d models.Document
		if err := getJSON(bkt, key, &d); err != nil {
			return err
		}
		u.Apply(&d, b.now())
		return putJSON(bkt, key, &d)
	})
	if err != nil {
		return fmt.Errorf("update document %s: %w", documentID, err)
	}
	return nil
}

// Close closes the BoltDB database.
func (b *Bolt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func documentKey(sessionID, documentID string) []byte {
	return []byte(sessionID + "/" + documentID)
}

func getJSON(bkt *bolt.Bucket, key []byte, v any) error {
	raw := bkt.Get(key)
	if raw == nil {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func putJSON(bkt *bolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bkt.Put(key, raw)
}

var _ Store = (*Bolt)(nil)
