package compat

import (
	"errors"
	"testing"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

type fakeProvider struct {
	name string

	managed    bool
	managedErr error

	secondary    *sim.Item
	secondaryErr error

	swapOK     bool
	swapReason string
	swapErr    error

	minSize    float64
	minApplies bool

	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) IsManaged(a *sim.Agent, it *sim.Item) (bool, error) {
	p.calls++
	return p.managed, p.managedErr
}

func (p *fakeProvider) FindBestSecondary(a *sim.Agent, score func(*sim.Item) float64) (*sim.Item, error) {
	p.calls++
	return p.secondary, p.secondaryErr
}

func (p *fakeProvider) ValidateSwap(newItem, oldItem *sim.Item, a *sim.Agent) (bool, string, error) {
	p.calls++
	return p.swapOK, p.swapReason, p.swapErr
}

func (p *fakeProvider) MinimumSize(it *sim.Item) (float64, bool) {
	p.calls++
	return p.minSize, p.minApplies
}

func TestEmptyRegistryIsInert(t *testing.T) {
	r := NewRegistry()
	a := &sim.Agent{}
	it := &sim.Item{}

	if r.IsManaged(a, it) {
		t.Fatal("empty registry managed something")
	}
	if got := r.FindBestSecondary(a, nil); got != nil {
		t.Fatal("empty registry proposed a sidearm")
	}
	if ok, _ := r.ValidateSwap(it, it, a); !ok {
		t.Fatal("empty registry vetoed a swap")
	}
	if _, applies := r.MinimumSizeFor(it); applies {
		t.Fatal("empty registry imposed a size requirement")
	}
}

func TestErrorQuarantinesProviderForSession(t *testing.T) {
	r := NewRegistry()
	bad := &fakeProvider{name: "bad", managedErr: errors.New("boom")}
	r.Register(bad)

	a := &sim.Agent{}
	it := &sim.Item{}
	r.IsManaged(a, it)
	if !r.Quarantined("bad") {
		t.Fatal("erroring provider not quarantined")
	}

	callsAfter := bad.calls
	r.IsManaged(a, it)
	r.ValidateSwap(it, it, a)
	if bad.calls != callsAfter {
		t.Fatalf("quarantined provider consulted again, calls went %d to %d", callsAfter, bad.calls)
	}
}

func TestQuarantineSparesOtherProviders(t *testing.T) {
	r := NewRegistry()
	bad := &fakeProvider{name: "bad", managedErr: errors.New("boom")}
	good := &fakeProvider{name: "good", managed: true}
	r.Register(bad)
	r.Register(good)

	if !r.IsManaged(&sim.Agent{}, &sim.Item{}) {
		t.Fatal("healthy provider's answer lost behind quarantined one")
	}
}

func TestValidateSwapFirstDenialWins(t *testing.T) {
	r := NewRegistry()
	denier := &fakeProvider{name: "denier", swapOK: false, swapReason: "pinned"}
	approver := &fakeProvider{name: "approver", swapOK: true}
	r.Register(denier)
	r.Register(approver)

	ok, reason := r.ValidateSwap(&sim.Item{}, &sim.Item{}, &sim.Agent{})
	if ok {
		t.Fatal("expected veto")
	}
	if reason != "pinned" {
		t.Fatalf("expected reason from first denier, got %q", reason)
	}
	if approver.calls != 0 {
		t.Fatal("later provider consulted after a veto")
	}
}

func TestValidateSwapErrorCountsAsApproval(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "flaky", swapErr: errors.New("boom")})

	if ok, _ := r.ValidateSwap(&sim.Item{}, &sim.Item{}, &sim.Agent{}); !ok {
		t.Fatal("erroring validator should not veto")
	}
}

func TestMinimumSizeTakesStrictest(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "loose", minSize: 0.5, minApplies: true})
	r.Register(&fakeProvider{name: "strict", minSize: 0.9, minApplies: true})
	r.Register(&fakeProvider{name: "silent", minApplies: false})

	size, applies := r.MinimumSizeFor(&sim.Item{})
	if !applies || size != 0.9 {
		t.Fatalf("expected strictest 0.9, got %v applies=%v", size, applies)
	}
}

func TestFindBestSecondaryFirstProposalWins(t *testing.T) {
	r := NewRegistry()
	item := &sim.Item{ID: "sidearm"}
	r.Register(&fakeProvider{name: "empty"})
	r.Register(&fakeProvider{name: "full", secondary: item})

	if got := r.FindBestSecondary(&sim.Agent{}, nil); got != item {
		t.Fatalf("expected the proposal, got %v", got)
	}
}
