// Package compat hosts the optional extension points third-party
// integrations plug into. The core functions identically with zero
// providers registered; a provider that returns malformed data is logged
// once and ignored for the rest of the session.
package compat

import (
	"log/slog"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

// Provider is the base contract: a stable name for logging and quarantine.
type Provider interface {
	Name() string
}

// ManagedProvider marks agents or items as managed by an external system;
// managed weapons are type-locked or excluded from evaluation entirely.
type ManagedProvider interface {
	Provider
	IsManaged(a *sim.Agent, it *sim.Item) (bool, error)
}

// SecondaryProvider proposes the best carried sidearm for an agent, scored
// by the supplied function.
type SecondaryProvider interface {
	Provider
	FindBestSecondary(a *sim.Agent, score func(*sim.Item) float64) (*sim.Item, error)
}

// SwapValidator gets a veto over a proposed swap.
type SwapValidator interface {
	Provider
	ValidateSwap(newItem, oldItem *sim.Item, a *sim.Agent) (ok bool, reason string, err error)
}

// SizeRequirer exposes an extra minimum-body-size requirement for an item.
// This replaces field scanning of unknown extension types: providers
// implement the capability explicitly.
type SizeRequirer interface {
	Provider
	MinimumSize(it *sim.Item) (size float64, applies bool)
}

// Registry holds registered providers and the session quarantine list.
type Registry struct {
	providers   []Provider
	quarantined map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{quarantined: make(map[string]bool)}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
}

// quarantine drops a provider for the rest of the session. Logged once.
func (r *Registry) quarantine(p Provider, err error) {
	if r.quarantined[p.Name()] {
		return
	}
	r.quarantined[p.Name()] = true
	slog.Warn("compat provider returned malformed data, ignoring for this session",
		"provider", p.Name(), "error", err)
}

func (r *Registry) active(p Provider) bool {
	return !r.quarantined[p.Name()]
}

// Quarantined reports whether a provider has been dropped.
func (r *Registry) Quarantined(name string) bool {
	return r.quarantined[name]
}

// IsManaged reports whether any provider manages the (agent, item) pair.
func (r *Registry) IsManaged(a *sim.Agent, it *sim.Item) bool {
	for _, p := range r.providers {
		mp, ok := p.(ManagedProvider)
		if !ok || !r.active(p) {
			continue
		}
		managed, err := mp.IsManaged(a, it)
		if err != nil {
			r.quarantine(p, err)
			continue
		}
		if managed {
			return true
		}
	}
	return false
}

// FindBestSecondary consults providers in registration order and returns
// the first proposal.
func (r *Registry) FindBestSecondary(a *sim.Agent, score func(*sim.Item) float64) *sim.Item {
	for _, p := range r.providers {
		sp, ok := p.(SecondaryProvider)
		if !ok || !r.active(p) {
			continue
		}
		it, err := sp.FindBestSecondary(a, score)
		if err != nil {
			r.quarantine(p, err)
			continue
		}
		if it != nil {
			return it
		}
	}
	return nil
}

// ValidateSwap gives every registered validator a veto. The first denial
// wins; provider errors quarantine the provider and count as approval.
func (r *Registry) ValidateSwap(newItem, oldItem *sim.Item, a *sim.Agent) (bool, string) {
	for _, p := range r.providers {
		sv, ok := p.(SwapValidator)
		if !ok || !r.active(p) {
			continue
		}
		allowed, reason, err := sv.ValidateSwap(newItem, oldItem, a)
		if err != nil {
			r.quarantine(p, err)
			continue
		}
		if !allowed {
			return false, reason
		}
	}
	return true, ""
}

// MinimumSizeFor returns the strictest provider-supplied size requirement
// for an item, if any applies.
func (r *Registry) MinimumSizeFor(it *sim.Item) (float64, bool) {
	var strictest float64
	found := false
	for _, p := range r.providers {
		sr, ok := p.(SizeRequirer)
		if !ok || !r.active(p) {
			continue
		}
		size, applies := sr.MinimumSize(it)
		if !applies {
			continue
		}
		if !found || size > strictest {
			strictest = size
			found = true
		}
	}
	return strictest, found
}
