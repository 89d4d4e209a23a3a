package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend is the alternative SnapshotBackend: each table's already-
// framed bytes are stored under a single key in an embedded Badger
// database, giving the store crash-safe persistence via Badger's own
// write-ahead log instead of the flat-file + rename scheme of
// FileBackend. Both satisfy the same interface, so Store.Flush/Load are
// unaware which one is in play.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (creating if necessary) a Badger database at dir.
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger snapshot db: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func snapshotKey(table string) []byte {
	return []byte("aqo:snapshot:" + table)
}

// WriteTable stores framed under the table's key in a single transaction.
func (b *BadgerBackend) WriteTable(table string, framed []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(table), framed)
	})
}

// ReadTable retrieves the table's framed bytes.
func (b *BadgerBackend) ReadTable(table string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(table))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read badger snapshot for %s: %w", table, err)
	}
	return out, nil
}

// Close releases the underlying Badger database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
