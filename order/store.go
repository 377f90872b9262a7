package order

import (
	"sync"
	"time"
)

// LicenseKeyDeriver derives the license key for an order id at the
// PENDING -> PAID transition.
type LicenseKeyDeriver func(orderID string) string

// Store holds order records keyed by order id. Implementations must make
// Create and TransitionToPaid atomic with respect to concurrent calls for
// the same order id: two redelivered notifications racing each other must
// resolve to exactly one license issuance.
type Store interface {
	// Create inserts a new PENDING order. Returns ErrDuplicateOrder if the
	// order id already exists.
	Create(orderID, amount, subject string) (*Order, error)

	// Get returns the order or ErrUnknownOrder.
	Get(orderID string) (*Order, error)

	// TransitionToPaid moves a PENDING order to PAID and assigns the derived
	// license key. Calling it again for an order already PAID is a no-op
	// that reports changed=false and keeps the existing license key.
	// Returns ErrUnknownOrder for ids never created.
	TransitionToPaid(orderID string, derive LicenseKeyDeriver) (*Order, bool, error)
}

// MemoryStore is the in-memory reference Store. A single mutex serializes
// every mutation, which is the whole concurrency story the lifecycle needs.
type MemoryStore struct {
	orders map[string]*Order
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
	}
}

// Create inserts a new PENDING order
func (s *MemoryStore) Create(orderID, amount, subject string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[orderID]; exists {
		return nil, ErrDuplicateOrder
	}

	o := &Order{
		OrderID:   orderID,
		Amount:    amount,
		Subject:   subject,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	s.orders[orderID] = o

	cp := *o
	return &cp, nil
}

// Get returns a copy of the order
func (s *MemoryStore) Get(orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[orderID]
	if !exists {
		return nil, ErrUnknownOrder
	}

	cp := *o
	return &cp, nil
}

// TransitionToPaid applies the single legal lifecycle transition
func (s *MemoryStore) TransitionToPaid(orderID string, derive LicenseKeyDeriver) (*Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[orderID]
	if !exists {
		return nil, false, ErrUnknownOrder
	}

	if o.Status == StatusPaid {
		// Redelivered notification: keep the issued license key untouched
		cp := *o
		return &cp, false, nil
	}

	now := time.Now()
	o.Status = StatusPaid
	o.LicenseKey = derive(orderID)
	o.PaidAt = &now

	cp := *o
	return &cp, true, nil
}
