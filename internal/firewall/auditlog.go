package firewall

import (
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"
)

var auditBucket = []byte("audit")

// AuditLog is a logging.Relay backed by a bbolt append-only bucket,
// giving operators a queryable record of every mutation in addition to
// the text logger.
type AuditLog struct {
	db *bbolt.DB
}

func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(auditBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &AuditLog{db: db}, nil
}

// WriteLog implements logging.Relay: each line is appended keyed by a
// monotonically increasing sequence number scoped to the bucket.
func (a *AuditLog) WriteLog(ts time.Time, line []byte) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(auditBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, append(timestampPrefix(ts), line...))
	})
}

func timestampPrefix(ts time.Time) []byte {
	return []byte(ts.UTC().Format(time.RFC3339) + " ")
}

func (a *AuditLog) Close() error {
	return a.db.Close()
}
