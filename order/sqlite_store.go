package order

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a durable Store backed by SQLite. The guarded UPDATE in
// TransitionToPaid gives the same once-only semantics as MemoryStore under
// concurrent notification delivery.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the order database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// WAL keeps concurrent notification and status-poll reads cheap
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("SQLite order store initialized at: %s", dbPath)
	return store, nil
}

// initSchema creates the orders table
func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		subject TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		license_key TEXT,
		created_at DATETIME NOT NULL,
		paid_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStore) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// Create inserts a new PENDING order
func (s *SQLiteStore) Create(orderID, amount, subject string) (*Order, error) {
	createdAt := time.Now()

	err := s.retryOperation(func() error {
		_, err := s.db.Exec(
			"INSERT INTO orders (order_id, amount, subject, status, created_at) VALUES (?, ?, ?, ?, ?)",
			orderID, amount, subject, string(StatusPending), createdAt,
		)
		if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateOrder
		}
		return err
	}, 3)
	if err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			return nil, ErrDuplicateOrder
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return &Order{
		OrderID:   orderID,
		Amount:    amount,
		Subject:   subject,
		Status:    StatusPending,
		CreatedAt: createdAt,
	}, nil
}

// Get returns the order or ErrUnknownOrder
func (s *SQLiteStore) Get(orderID string) (*Order, error) {
	row := s.db.QueryRow(
		"SELECT order_id, amount, subject, status, license_key, created_at, paid_at FROM orders WHERE order_id = ?",
		orderID,
	)
	return scanOrder(row)
}

// TransitionToPaid applies the single legal lifecycle transition. The UPDATE
// is guarded on status='PENDING', so concurrent duplicate notifications see
// exactly one row change.
func (s *SQLiteStore) TransitionToPaid(orderID string, derive LicenseKeyDeriver) (*Order, bool, error) {
	licenseKey := derive(orderID)
	paidAt := time.Now()

	var changed bool
	err := s.retryOperation(func() error {
		res, err := s.db.Exec(
			"UPDATE orders SET status = ?, license_key = ?, paid_at = ? WHERE order_id = ? AND status = ?",
			string(StatusPaid), licenseKey, paidAt, orderID, string(StatusPending),
		)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = rows > 0
		return nil
	}, 3)
	if err != nil {
		return nil, false, fmt.Errorf("failed to transition order: %w", err)
	}

	o, err := s.Get(orderID)
	if err != nil {
		return nil, false, err
	}

	return o, changed, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	var status string
	var licenseKey sql.NullString
	var paidAt sql.NullTime

	err := row.Scan(&o.OrderID, &o.Amount, &o.Subject, &status, &licenseKey, &o.CreatedAt, &paidAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownOrder
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}

	o.Status = Status(status)
	if licenseKey.Valid {
		o.LicenseKey = licenseKey.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}

	return &o, nil
}
