package httpapi

import (
	"net/http"
	"strings"
)

// NewMux returns the raw mux so main() can wrap it in middleware and
// still attach process-level routes.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Search
	srh := SearchHandler{Engine: d.Engine}
	mux.HandleFunc("/jobs/search", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: srh.Search,
	}))

	// Jobs
	jh := JobsHandler{DB: d.DB, Hub: d.Hub, Tree: d.Tree, View: d.View, Ledger: d.Ledger}
	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  jh.List,
		http.MethodPost: jh.Publish,
	}))
	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			jh.GetByPath(w, r) // /jobs/{id}
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/close"):
			jh.CloseByPath(w, r) // /jobs/{id}/close
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Categories
	ch := CategoriesHandler{DB: d.DB, Tree: d.Tree}
	mux.HandleFunc("/categories", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  ch.GetTree,
		http.MethodPost: ch.Create,
	}))
	mux.HandleFunc("/categories/search", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Search,
	}))
	mux.HandleFunc("/categories/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/deactivate") {
			ch.Deactivate(w, r) // /categories/{id}/deactivate
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	// Promotions
	ph := PromotionsHandler{DB: d.DB, Ledger: d.Ledger, Identity: d.Identity}
	mux.HandleFunc("/promotions/units", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ph.UpsertUnit,
	}))
	mux.HandleFunc("/promotions/grant", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ph.Grant,
	}))
	mux.HandleFunc("/promotions/apply", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ph.Apply,
	}))
	mux.HandleFunc("/entitlements", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.ListEntitlements,
	}))
	mux.HandleFunc("/entitlements/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/revoke") {
			ph.RevokeByPath(w, r) // /entitlements/{id}/revoke
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	// Config
	cfh := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Get,
		http.MethodPut: cfh.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Path,
	}))

	// Sweep
	swh := SweepHandler{Status: d.SweepStatus, RunSweep: d.RunSweep}
	mux.HandleFunc("/sweep/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: swh.GetStatus,
	}))
	mux.HandleFunc("/sweep/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: swh.Run,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Health
	hh := HealthHandler{View: d.View}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	return mux
}
