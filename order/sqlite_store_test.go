package order

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestSQLiteStore(t)

	created, err := store.Create("ORD_1_abcd1234", "1.00", "Pro License")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != StatusPending {
		t.Errorf("status = %v, want PENDING", created.Status)
	}

	got, err := store.Get("ORD_1_abcd1234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Amount != "1.00" || got.Subject != "Pro License" || got.Status != StatusPending {
		t.Errorf("unexpected order: %+v", got)
	}
	if got.LicenseKey != "" {
		t.Errorf("pending order should have no license key, got %q", got.LicenseKey)
	}
}

func TestSQLiteStore_CreateDuplicate(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")
	_, err := store.Create("ORD_1_abcd1234", "2.00", "Other")
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("error = %v, want ErrDuplicateOrder", err)
	}
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Get("ORD_missing")
	if !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("error = %v, want ErrUnknownOrder", err)
	}
}

func TestSQLiteStore_TransitionToPaid(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	o, changed, err := store.TransitionToPaid("ORD_1_abcd1234", DeriveLicenseKey)
	if err != nil {
		t.Fatalf("TransitionToPaid() error = %v", err)
	}
	if !changed {
		t.Error("first transition should report changed=true")
	}
	if o.Status != StatusPaid || o.LicenseKey != "PRO-ABCD1234" {
		t.Errorf("unexpected order after transition: %+v", o)
	}
	if o.PaidAt == nil {
		t.Error("PaidAt should be set")
	}

	// Replay keeps the issued key
	replay, changed, err := store.TransitionToPaid("ORD_1_abcd1234", func(string) string { return "FORGED" })
	if err != nil {
		t.Fatalf("replayed TransitionToPaid() error = %v", err)
	}
	if changed {
		t.Error("replay should report changed=false")
	}
	if replay.LicenseKey != "PRO-ABCD1234" {
		t.Errorf("license key changed on replay: %q", replay.LicenseKey)
	}
}

func TestSQLiteStore_TransitionUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, _, err := store.TransitionToPaid("ORD_missing", DeriveLicenseKey)
	if !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("error = %v, want ErrUnknownOrder", err)
	}
}

func TestSQLiteStore_ConcurrentTransitions(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	var transitions int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := store.TransitionToPaid("ORD_1_abcd1234", DeriveLicenseKey)
			if err != nil {
				t.Errorf("TransitionToPaid() error = %v", err)
				return
			}
			if changed {
				atomic.AddInt64(&transitions, 1)
			}
		}()
	}
	wg.Wait()

	if transitions != 1 {
		t.Errorf("exactly one transition should win, got %d", transitions)
	}
}
