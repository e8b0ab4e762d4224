package httpapi

import (
	"database/sql"
	"sync/atomic"

	"jobboard-engine/internal/config"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/identity"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/rank"
	"jobboard-engine/internal/taxonomy"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub

	Tree   *taxonomy.Tree
	View   *index.View
	Ledger *ledger.Ledger
	Engine *rank.Engine

	Identity identity.Provider

	// Atomic stores
	CfgVal      *atomic.Value // stores config.Config
	SweepStatus *atomic.Value // stores httpapi.SweepStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Sweep entrypoint (inject for testability)
	RunSweep func() (expired int, err error)
}
