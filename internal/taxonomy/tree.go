// Package taxonomy owns the job-category hierarchy and its open-job count
// rollups. Nodes live in an arena map keyed by id and hold only parent-id
// back-references; job counters are per-node atomics so disjoint branches
// never contend.
package taxonomy

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"jobboard-engine/internal/domain"
)

type node struct {
	id        int64
	name      string
	slug      string
	parentID  int64 // 0 means root
	sortOrder int
	active    bool
	children  []int64
	jobCount  atomic.Int64
}

// Tree is the in-memory category arena. The mutex guards shape (node set,
// child lists, active flags); counters bypass it entirely.
type Tree struct {
	mu    sync.RWMutex
	nodes map[int64]*node
}

func NewTree() *Tree {
	return &Tree{nodes: make(map[int64]*node)}
}

// Load replaces the arena content from store rows. Counters start at zero;
// callers follow up with Reconcile.
func (t *Tree) Load(categories []domain.Category) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes = make(map[int64]*node, len(categories))
	for _, c := range categories {
		n := &node{
			id:        c.ID,
			name:      c.Name,
			slug:      c.Slug,
			sortOrder: c.SortOrder,
			active:    c.IsActive,
		}
		if c.ParentID != nil {
			n.parentID = *c.ParentID
		}
		t.nodes[c.ID] = n
	}
	for _, n := range t.nodes {
		if n.parentID != 0 {
			if p, ok := t.nodes[n.parentID]; ok {
				p.children = append(p.children, n.id)
			}
		}
	}
	for _, n := range t.nodes {
		sortChildren(t.nodes, n)
	}
}

func sortChildren(nodes map[int64]*node, n *node) {
	sort.Slice(n.children, func(i, j int) bool {
		a, b := nodes[n.children[i]], nodes[n.children[j]]
		if a.sortOrder != b.sortOrder {
			return a.sortOrder < b.sortOrder
		}
		return a.id < b.id
	})
}

// Add inserts a category that was just persisted. The cycle guard lives
// here: a parent must already exist in the arena, so a node can never end
// up among its own ancestors.
func (t *Tree) Add(c domain.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.nodes[c.ID]; dup {
		return fmt.Errorf("category %d already present", c.ID)
	}
	var parentID int64
	if c.ParentID != nil {
		parentID = *c.ParentID
		if _, ok := t.nodes[parentID]; !ok {
			return fmt.Errorf("parent category %d: %w", parentID, domain.ErrNotFound)
		}
	}
	n := &node{
		id:        c.ID,
		name:      c.Name,
		slug:      c.Slug,
		parentID:  parentID,
		sortOrder: c.SortOrder,
		active:    c.IsActive,
	}
	t.nodes[c.ID] = n
	if parentID != 0 {
		p := t.nodes[parentID]
		p.children = append(p.children, c.ID)
		sortChildren(t.nodes, p)
	}
	return nil
}

// Deactivate soft-disables a category. Nodes are never removed while jobs
// may still reference them.
func (t *Tree) Deactivate(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.active = false
	return nil
}

// Node is a GetTree result entry with children populated.
type Node struct {
	Category domain.Category `json:"category"`
	Children []*Node         `json:"children"`
}

// GetTree returns the active forest, roots ordered by sortOrder then id.
func (t *Tree) GetTree() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var roots []*node
	for _, n := range t.nodes {
		if n.parentID == 0 && n.active {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].sortOrder != roots[j].sortOrder {
			return roots[i].sortOrder < roots[j].sortOrder
		}
		return roots[i].id < roots[j].id
	})
	out := make([]*Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, t.buildNode(r))
	}
	return out
}

func (t *Tree) buildNode(n *node) *Node {
	out := &Node{Category: t.snapshot(n)}
	for _, cid := range n.children {
		c := t.nodes[cid]
		if c == nil || !c.active {
			continue
		}
		out.Children = append(out.Children, t.buildNode(c))
	}
	return out
}

func (t *Tree) snapshot(n *node) domain.Category {
	c := domain.Category{
		ID:        n.id,
		Name:      n.name,
		Slug:      n.slug,
		SortOrder: n.sortOrder,
		IsActive:  n.active,
		JobCount:  n.jobCount.Load(),
	}
	if n.parentID != 0 {
		p := n.parentID
		c.ParentID = &p
	}
	return c
}

// isLeaf: no active children. Caller holds at least a read lock.
func (t *Tree) isLeaf(n *node) bool {
	for _, cid := range n.children {
		if c := t.nodes[cid]; c != nil && c.active {
			return false
		}
	}
	return true
}

// ExpandToLeafIDs returns {id} for a leaf, otherwise every active
// descendant leaf. Unknown or inactive ids expand to nothing.
func (t *Tree) ExpandToLeafIDs(id int64) map[int64]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int64]struct{})
	start, ok := t.nodes[id]
	if !ok || !start.active {
		return out
	}
	stack := []*node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.isLeaf(n) {
			out[n.id] = struct{}{}
			continue
		}
		for _, cid := range n.children {
			if c := t.nodes[cid]; c != nil && c.active {
				stack = append(stack, c)
			}
		}
	}
	return out
}

// PathOf derives the root→self display path by walking parent ids. Never
// stored, so renames need no invalidation.
func (t *Tree) PathOf(id int64) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathOf(id)
}

func (t *Tree) pathOf(id int64) string {
	var parts []string
	for n := t.nodes[id]; n != nil; n = t.nodes[n.parentID] {
		parts = append(parts, n.name)
		if n.parentID == 0 {
			break
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// SearchByNameSubstring finds active leaves whose folded path contains the
// folded keyword.
func (t *Tree) SearchByNameSubstring(keyword string) []domain.Category {
	needle := Fold(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []domain.Category
	for _, n := range t.nodes {
		if !n.active || !t.isLeaf(n) {
			continue
		}
		if strings.Contains(Fold(t.pathOf(n.id)), needle) {
			out = append(out, t.snapshot(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OnJobOpened bumps the counter on the leaf and every ancestor. Rejects
// unknown, inactive and non-leaf categories; jobs attach to leaves only.
func (t *Tree) OnJobOpened(categoryID int64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[categoryID]
	if !ok || !n.active || !t.isLeaf(n) {
		return fmt.Errorf("category %d: %w", categoryID, domain.ErrCategoryNotAssignable)
	}
	for ; n != nil; n = t.nodes[n.parentID] {
		n.jobCount.Add(1)
		if n.parentID == 0 {
			break
		}
	}
	return nil
}

// OnJobClosedOrRemoved decrements the chain. Underflow means the caller
// unpaired an open/close; counts clamp at zero and the drift is logged so
// the next reconcile heals it.
func (t *Tree) OnJobClosedOrRemoved(categoryID int64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[categoryID]
	if !ok {
		return fmt.Errorf("category %d: %w", categoryID, domain.ErrNotFound)
	}
	for ; n != nil; n = t.nodes[n.parentID] {
		if v := n.jobCount.Add(-1); v < 0 {
			n.jobCount.Store(0)
			log.Printf("level=warn msg=\"category counter underflow\" category_id=%d", n.id)
		}
		if n.parentID == 0 {
			break
		}
	}
	return nil
}

// JobCount returns the current rollup for one category.
func (t *Tree) JobCount(id int64) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.nodes[id]; ok {
		return n.jobCount.Load()
	}
	return 0
}

// Reconcile recomputes every rollup from authoritative per-leaf counts,
// fanning out one goroutine per root. Idempotent; safe to run while live
// increments continue (last writer wins, next sweep converges).
func (t *Tree) Reconcile(ctx context.Context, openByLeaf map[int64]int64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, n := range t.nodes {
		if n.parentID != 0 {
			continue
		}
		root := n
		g.Go(func() error {
			t.recount(root, openByLeaf)
			return nil
		})
	}
	return g.Wait()
}

func (t *Tree) recount(n *node, openByLeaf map[int64]int64) int64 {
	total := openByLeaf[n.id]
	for _, cid := range n.children {
		if c := t.nodes[cid]; c != nil {
			total += t.recount(c, openByLeaf)
		}
	}
	n.jobCount.Store(total)
	return total
}
