package cache_test

import (
	"testing"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
)

func TestTagFormats(t *testing.T) {
	cases := map[string]string{
		cache.GlobalTag(domain.ResourceBudgets):              "global:budgets",
		cache.UserTag(domain.ResourceLoans, "u1"):            "user:u1-loans",
		cache.IDTag(domain.ResourceExpenses, "e1"):           "id:e1-expenses",
		cache.ItemsTag(domain.ResourceInstallments, "loan1"): "items:loan1-installments",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestTags_NoCollisionAcrossResources(t *testing.T) {
	ids := []string{"a", "a-b", "x-budgets", "loans", "1-2-3"}
	seen := map[string]string{}

	for _, r := range domain.Resources() {
		for _, id := range ids {
			for _, tag := range []string{
				cache.GlobalTag(r),
				cache.UserTag(r, id),
				cache.IDTag(r, id),
				cache.ItemsTag(r, id),
			} {
				origin := string(r) + "|" + id
				if tag == cache.GlobalTag(r) {
					origin = string(r)
				}
				if prev, ok := seen[tag]; ok && prev != origin {
					t.Fatalf("tag %q produced by %s and %s", tag, prev, origin)
				}
				seen[tag] = origin
			}
		}
	}
}

func TestEntryAndItemTags(t *testing.T) {
	got := cache.EntryTags(domain.ResourceBudgets, "u1", "b1")
	want := []string{"global:budgets", "id:b1-budgets", "user:u1-budgets"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EntryTags[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	got = cache.ItemTags(domain.ResourceExpenses, "b1", "e1")
	want = []string{"global:expenses", "id:e1-expenses", "items:b1-expenses"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ItemTags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
