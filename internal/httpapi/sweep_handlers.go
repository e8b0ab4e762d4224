package httpapi

import (
	"net/http"
	"sync/atomic"
)

// SweepStatus is the last sweep outcome, stored in an atomic.Value.
type SweepStatus struct {
	LastRunAt  string `json:"last_run_at"`
	LastOkAt   string `json:"last_ok_at"`
	LastError  string `json:"last_error"`
	LastSwept  int    `json:"last_swept"`
	TotalSwept int64  `json:"total_swept"`
	Running    bool   `json:"running"`
}

type SweepHandler struct {
	Status   *atomic.Value // stores SweepStatus
	RunSweep func() (expired int, err error)
}

func (h SweepHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(SweepStatus)
	writeJSON(w, st)
}

// Run triggers an immediate sweep in addition to the scheduled ones. The
// sweep is idempotent, so racing the scheduler is harmless.
func (h SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	expired, err := h.RunSweep()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "expired": expired})
}
