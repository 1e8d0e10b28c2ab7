package invoice

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "invoices"

// DB defines the interface for database operations
type DB interface {
	// SaveInvoice inserts or replaces an invoice
	SaveInvoice(invoice *Invoice) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(id string) (*Invoice, error)

	// ListInvoices returns all invoices, newest first
	ListInvoices() ([]*Invoice, error)

	// DeleteInvoice removes an invoice from the database
	DeleteInvoice(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveInvoice saves an invoice keyed by its ID
func (b *BoltDB) SaveInvoice(invoice *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(invoice)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(invoice.ID), data)
	})
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(id string) (*Invoice, error) {
	var invoice Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoices returns all invoices, newest first
func (b *BoltDB) ListInvoices() ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var invoice Invoice
			if err := json.Unmarshal(v, &invoice); err != nil {
				return fmt.Errorf("unmarshaling invoice %s: %w", k, err)
			}
			invoices = append(invoices, &invoice)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return invoices, nil
}

// DeleteInvoice removes an invoice. Deleting a missing ID is an error.
func (b *BoltDB) DeleteInvoice(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
