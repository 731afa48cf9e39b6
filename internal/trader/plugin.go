package trader

import (
	"context"
	"sync"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// PluginInput is one user's view of the tick handed to a decision plugin.
type PluginInput struct {
	UserID   int64
	Policy   domain.UserPolicy
	Snapshot *snapshot.Snapshot
	Holdings []domain.Holding
	Cash     float64
}

// Decision is a buy a plugin wants placed. Sells stay with the trigger
// ladder; plugins only pick entries.
type Decision struct {
	Ticker   string
	Quantity int64
	Reason   string
}

// DecisionPlugin replaces the candidate ranking for greenlight-mode users.
// Decisions still pass the hard filters: blacklist, held, pending, slots,
// the daily trade cap and available cash.
type DecisionPlugin interface {
	Name() string
	Decide(ctx context.Context, in PluginInput) ([]Decision, error)
}

// Registry holds the process's active decision plugin. One plugin serves all
// greenlight users; registering a second replaces the first.
type Registry struct {
	mu     sync.RWMutex
	plugin DecisionPlugin
}

func NewRegistry() *Registry { return &Registry{} }

// Register installs the plugin, replacing any previous one.
func (r *Registry) Register(p DecisionPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugin = p
}

// Active returns the installed plugin, nil when none is registered.
func (r *Registry) Active() DecisionPlugin {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugin
}
