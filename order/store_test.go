package order

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()

	o, err := store.Create("ORD_1_abcd1234", "1.00", "Pro License")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if o.Status != StatusPending {
		t.Errorf("new order status = %v, want PENDING", o.Status)
	}
	if o.LicenseKey != "" {
		t.Errorf("new order should have no license key, got %q", o.LicenseKey)
	}

	// Same id again must be rejected
	_, err = store.Create("ORD_1_abcd1234", "2.00", "Other")
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateOrder", err)
	}
}

func TestMemoryStore_Get(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("ORD_missing")
	if !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("Get() error = %v, want ErrUnknownOrder", err)
	}

	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")
	o, err := store.Get("ORD_1_abcd1234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if o.Amount != "1.00" || o.Subject != "Pro License" {
		t.Errorf("unexpected order: %+v", o)
	}
}

func TestMemoryStore_TransitionToPaid(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	o, changed, err := store.TransitionToPaid("ORD_1_abcd1234", DeriveLicenseKey)
	if err != nil {
		t.Fatalf("TransitionToPaid() error = %v", err)
	}
	if !changed {
		t.Error("first transition should report changed=true")
	}
	if o.Status != StatusPaid {
		t.Errorf("status = %v, want PAID", o.Status)
	}
	if o.LicenseKey != "PRO-ABCD1234" {
		t.Errorf("license key = %q, want PRO-ABCD1234", o.LicenseKey)
	}
	if o.PaidAt == nil {
		t.Error("PaidAt should be set")
	}
}

func TestMemoryStore_TransitionToPaid_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	first, _, err := store.TransitionToPaid("ORD_1_abcd1234", DeriveLicenseKey)
	if err != nil {
		t.Fatalf("TransitionToPaid() error = %v", err)
	}

	// The gateway redelivers notifications; the replay must change nothing
	calls := 0
	second, changed, err := store.TransitionToPaid("ORD_1_abcd1234", func(id string) string {
		calls++
		return "SHOULD-NOT-BE-USED"
	})
	if err != nil {
		t.Fatalf("replayed TransitionToPaid() error = %v", err)
	}
	if changed {
		t.Error("replay should report changed=false")
	}
	if calls != 0 {
		t.Error("deriver must not run for an already paid order")
	}
	if second.LicenseKey != first.LicenseKey {
		t.Errorf("license key changed on replay: %q -> %q", first.LicenseKey, second.LicenseKey)
	}
}

func TestMemoryStore_TransitionToPaid_UnknownOrder(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.TransitionToPaid("ORD_missing", DeriveLicenseKey)
	if !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("error = %v, want ErrUnknownOrder", err)
	}
}

func TestMemoryStore_ConcurrentDuplicateNotifications(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	var transitions int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
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
		t.Errorf("exactly one goroutine should win the transition, got %d", transitions)
	}

	o, err := store.Get("ORD_1_abcd1234")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if o.Status != StatusPaid || o.LicenseKey != "PRO-ABCD1234" {
		t.Errorf("final order corrupted: %+v", o)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Create("ORD_1_abcd1234", "1.00", "Pro License")

	o, _ := store.Get("ORD_1_abcd1234")
	o.Status = StatusPaid
	o.LicenseKey = "FORGED"

	fresh, _ := store.Get("ORD_1_abcd1234")
	if fresh.Status != StatusPending || fresh.LicenseKey != "" {
		t.Error("mutating a returned order must not affect the store")
	}
}
