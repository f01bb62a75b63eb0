package registry

import (
	"sync"
	"testing"

	"ValueFlow/internal/domain/models"
)

func TestEnsureCreatesOnFirstSighting(t *testing.T) {
	r := New()
	gold := r.Ensure("GOLD", models.CategoryCommodity)
	if gold.ID == 0 || gold.Symbol != "GOLD" || !gold.Active {
		t.Fatalf("unexpected item %+v", gold)
	}

	again := r.Ensure("GOLD", models.CategoryCurrency)
	if again.ID != gold.ID || again.Category != models.CategoryCommodity {
		t.Fatalf("re-sighting must not change identity: %+v", again)
	}
}

func TestEnsureNormalizesSymbol(t *testing.T) {
	r := New()
	a := r.Ensure("  gold ", models.CategoryCommodity)
	b := r.Ensure("GOLD", models.CategoryCommodity)
	if a.ID != b.ID {
		t.Fatalf("normalization mismatch: %d vs %d", a.ID, b.ID)
	}
}

func TestLookupAndByID(t *testing.T) {
	r := New()
	gold := r.Ensure("GOLD", models.CategoryCommodity)

	if it, ok := r.Lookup("gold"); !ok || it.ID != gold.ID {
		t.Fatalf("lookup failed: %+v %v", it, ok)
	}
	if _, ok := r.Lookup("SILVER"); ok {
		t.Fatal("unexpected hit for unknown symbol")
	}
	if it, ok := r.ByID(gold.ID); !ok || it.Symbol != "GOLD" {
		t.Fatalf("byID failed: %+v %v", it, ok)
	}
}

func TestSymbolOfUnknownID(t *testing.T) {
	r := New()
	if got := r.SymbolOf(42); got != "#42" {
		t.Fatalf("expected #42, got %s", got)
	}
}

func TestDeactivateKeepsItemResolvable(t *testing.T) {
	r := New()
	gold := r.Ensure("GOLD", models.CategoryCommodity)

	if !r.Deactivate("gold") {
		t.Fatal("deactivate failed")
	}
	if r.Deactivate("SILVER") {
		t.Fatal("deactivate must fail for unknown symbol")
	}

	it, ok := r.ByID(gold.ID)
	if !ok || it.Active {
		t.Fatalf("deactivated item must stay resolvable: %+v %v", it, ok)
	}
}

func TestItemsSortedBySymbol(t *testing.T) {
	r := New()
	r.Ensure("SILVER", models.CategoryCommodity)
	r.Ensure("GOLD", models.CategoryCommodity)
	r.Ensure("COPPER", models.CategoryCommodity)

	items := r.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Symbol > items[i].Symbol {
			t.Fatalf("items out of order: %+v", items)
		}
	}
}

func TestEnsureConcurrentSameSymbol(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Ensure("BTC", models.CategoryCrypto).ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent ensure produced distinct IDs: %v", ids)
		}
	}
}
