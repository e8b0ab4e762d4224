package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/store"
	"jobboard-engine/internal/taxonomy"
)

type CategoriesHandler struct {
	DB   *sql.DB
	Tree *taxonomy.Tree
}

// GetTree returns the active hierarchy with live open-job counts.
func (h CategoriesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"items": h.Tree.GetTree()})
}

// Search matches the folded query against full category paths, so
// "lap trinh" finds "Lập Trình Web" without diacritics.
func (h CategoriesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_search_parameter", "missing q")
		return
	}
	cats := h.Tree.SearchByNameSubstring(q)
	type hit struct {
		domain.Category
		Path string `json:"path"`
	}
	hits := make([]hit, 0, len(cats))
	for _, c := range cats {
		hits = append(hits, hit{Category: c, Path: h.Tree.PathOf(c.ID)})
	}
	writeJSON(w, map[string]any{"items": hits})
}

type categoryRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ParentID  *int64 `json:"parentId"`
	SortOrder int    `json:"sortOrder"`
}

// Create persists a category and grafts it onto the live tree. The tree
// rejects unknown parents, which also rules out cycles.
func (h CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" || req.Slug == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "name and slug are required")
		return
	}

	c := domain.Category{
		Name:      req.Name,
		Slug:      req.Slug,
		ParentID:  req.ParentID,
		SortOrder: req.SortOrder,
		IsActive:  true,
	}
	id, err := store.InsertCategory(r.Context(), h.DB, c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c.ID = id
	if err := h.Tree.Add(c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

// Deactivate hides a subtree from search and new postings. Existing open
// jobs keep their category until they close.
func (h CategoriesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/categories/", "/deactivate")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "invalid category id")
		return
	}
	if err := store.SetCategoryActive(r.Context(), h.DB, id, false); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Tree.Deactivate(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id})
}
