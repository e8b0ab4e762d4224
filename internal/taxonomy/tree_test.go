package taxonomy

import (
	"context"
	"sync"
	"testing"

	"jobboard-engine/internal/domain"
)

func ptr(v int64) *int64 { return &v }

// it > programming > backend / frontend, plus a second root "sales"
func buildTestTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()
	tree.Load([]domain.Category{
		{ID: 1, Name: "IT", Slug: "it", IsActive: true},
		{ID: 2, Name: "Lập Trình", Slug: "programming", ParentID: ptr(1), IsActive: true},
		{ID: 3, Name: "Backend", Slug: "backend", ParentID: ptr(2), IsActive: true},
		{ID: 4, Name: "Frontend", Slug: "frontend", ParentID: ptr(2), IsActive: true},
		{ID: 5, Name: "Sales", Slug: "sales", IsActive: true},
	})
	return tree
}

func TestExpandToLeafIDs(t *testing.T) {
	tree := buildTestTree(t)

	leaves := tree.ExpandToLeafIDs(1)
	if len(leaves) != 2 {
		t.Fatalf("ExpandToLeafIDs(IT) = %v, want backend+frontend", leaves)
	}
	for _, id := range []int64{3, 4} {
		if _, ok := leaves[id]; !ok {
			t.Errorf("leaf %d missing from expansion", id)
		}
	}

	self := tree.ExpandToLeafIDs(3)
	if len(self) != 1 {
		t.Fatalf("leaf expansion should be itself, got %v", self)
	}

	// idempotent
	again := tree.ExpandToLeafIDs(1)
	if len(again) != len(leaves) {
		t.Errorf("expansion not idempotent: %v vs %v", leaves, again)
	}

	if got := tree.ExpandToLeafIDs(999); len(got) != 0 {
		t.Errorf("unknown id should expand to nothing, got %v", got)
	}
}

func TestJobCountRollup(t *testing.T) {
	tree := buildTestTree(t)

	if err := tree.OnJobOpened(3); err != nil {
		t.Fatalf("OnJobOpened(backend): %v", err)
	}
	for _, c := range []struct {
		id   int64
		want int64
	}{{3, 1}, {2, 1}, {1, 1}, {5, 0}} {
		if got := tree.JobCount(c.id); got != c.want {
			t.Errorf("jobCount(%d) = %d, want %d", c.id, got, c.want)
		}
	}

	if err := tree.OnJobClosedOrRemoved(3); err != nil {
		t.Fatalf("OnJobClosedOrRemoved(backend): %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		if got := tree.JobCount(id); got != 0 {
			t.Errorf("jobCount(%d) = %d after close, want 0", id, got)
		}
	}
}

func TestOpenRejectsNonLeafAndInactive(t *testing.T) {
	tree := buildTestTree(t)

	if err := tree.OnJobOpened(2); err == nil {
		t.Error("opening on non-leaf should be rejected")
	}
	if err := tree.OnJobOpened(999); err == nil {
		t.Error("opening on unknown category should be rejected")
	}
	if err := tree.Deactivate(5); err != nil {
		t.Fatal(err)
	}
	if err := tree.OnJobOpened(5); err == nil {
		t.Error("opening on inactive category should be rejected")
	}
}

func TestUnderflowClampsAtZero(t *testing.T) {
	tree := buildTestTree(t)
	if err := tree.OnJobClosedOrRemoved(3); err != nil {
		t.Fatal(err)
	}
	if got := tree.JobCount(3); got != 0 {
		t.Errorf("jobCount after underflow = %d, want 0 (clamped)", got)
	}
}

func TestConcurrentCountersDoNotLoseUpdates(t *testing.T) {
	tree := buildTestTree(t)

	const perLeaf = 200
	var wg sync.WaitGroup
	for _, leaf := range []int64{3, 4} {
		for i := 0; i < perLeaf; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_ = tree.OnJobOpened(id)
			}(leaf)
		}
	}
	wg.Wait()

	if got := tree.JobCount(3); got != perLeaf {
		t.Errorf("jobCount(backend) = %d, want %d", got, perLeaf)
	}
	if got := tree.JobCount(1); got != 2*perLeaf {
		t.Errorf("jobCount(IT) = %d, want %d", got, 2*perLeaf)
	}
}

func TestRollupInvariantAfterEventMix(t *testing.T) {
	tree := buildTestTree(t)

	for i := 0; i < 5; i++ {
		_ = tree.OnJobOpened(3)
	}
	for i := 0; i < 3; i++ {
		_ = tree.OnJobOpened(4)
	}
	for i := 0; i < 2; i++ {
		_ = tree.OnJobClosedOrRemoved(3)
	}

	// jobCount(parent) == sum of children rollups, no jobs directly on parents
	if got, want := tree.JobCount(2), tree.JobCount(3)+tree.JobCount(4); got != want {
		t.Errorf("jobCount(programming) = %d, want %d", got, want)
	}
	if got, want := tree.JobCount(1), tree.JobCount(2); got != want {
		t.Errorf("jobCount(IT) = %d, want %d", got, want)
	}
}

func TestReconcileHealsDrift(t *testing.T) {
	tree := buildTestTree(t)

	// force drift: close without a matching open
	_ = tree.OnJobClosedOrRemoved(4)

	err := tree.Reconcile(context.Background(), map[int64]int64{3: 7, 4: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		id   int64
		want int64
	}{{3, 7}, {4, 2}, {2, 9}, {1, 9}, {5, 0}} {
		if got := tree.JobCount(c.id); got != c.want {
			t.Errorf("jobCount(%d) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestSearchByNameSubstringFoldsDiacritics(t *testing.T) {
	tree := buildTestTree(t)

	got := tree.SearchByNameSubstring("lap trinh")
	if len(got) != 2 {
		t.Fatalf("search 'lap trinh' = %v, want backend+frontend leaves", got)
	}

	// non-leaves never match
	for _, c := range got {
		if c.ID == 2 {
			t.Error("non-leaf category returned from leaf search")
		}
	}

	if res := tree.SearchByNameSubstring("backend"); len(res) != 1 || res[0].ID != 3 {
		t.Errorf("search 'backend' = %v", res)
	}
	if res := tree.SearchByNameSubstring(""); res != nil {
		t.Errorf("empty keyword should return nothing, got %v", res)
	}
}

func TestFold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Lập Trình", "lap trinh"},
		{"Đà Nẵng", "da nang"},
		{"Backend", "backend"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Fold(c.in); got != c.want {
			t.Errorf("Fold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAddRejectsMissingParent(t *testing.T) {
	tree := buildTestTree(t)
	err := tree.Add(domain.Category{ID: 10, Name: "Orphan", Slug: "orphan", ParentID: ptr(404), IsActive: true})
	if err == nil {
		t.Error("adding under unknown parent should fail")
	}
}
