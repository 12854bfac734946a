package credentials

import (
	"context"
	"errors"
	"testing"
)

type scriptedChecker struct {
	balances map[string]float64
	err      error
}

func (c *scriptedChecker) CheckBalance(ctx context.Context, cred *Credential) (float64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.balances[cred.Code], nil
}

func TestRefresherInvalidSchedule(t *testing.T) {
	p := NewPool(Config{Backend: "test", MinBalance: 0.04})
	defer p.Close()

	r := NewRefresher(p, &scriptedChecker{}, "not a cron expression", nil)
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start() = nil error for invalid schedule")
	}
}

func TestRefresherEmptyScheduleIsNoop(t *testing.T) {
	p := NewPool(Config{Backend: "test", MinBalance: 0.04})
	defer p.Close()

	r := NewRefresher(p, &scriptedChecker{}, "", nil)
	if err := r.Start(context.Background()); err != nil {
		t.Errorf("Start() with empty schedule = %v, want nil", err)
	}
	r.Stop()
}

func TestRefreshAllEvictsDrainedCredentials(t *testing.T) {
	minter := &scriptedMinter{balance: 1.0}
	p := NewPool(Config{
		Backend:    "test",
		MinBalance: 0.04,
		Minter:     minter,
	})
	defer p.Close()

	cred, err := p.GetValid(context.Background())
	if err != nil {
		t.Fatalf("GetValid() failed: %v", err)
	}

	checker := &scriptedChecker{balances: map[string]float64{cred.Code: 0.01}}
	r := NewRefresher(p, checker, "*/15 * * * *", nil)
	r.refreshAll(context.Background())

	state := p.Snapshot()
	if len(state.Active) != 0 {
		t.Errorf("Active = %v after drained refresh, want empty", state.Active)
	}
	if len(state.Blocked) != 1 || state.Blocked[0] != cred.Code {
		t.Errorf("Blocked = %v, want [%q]", state.Blocked, cred.Code)
	}
}

func TestRefreshAllSkipsFailedChecks(t *testing.T) {
	minter := &scriptedMinter{balance: 1.0}
	p := NewPool(Config{
		Backend:    "test",
		MinBalance: 0.04,
		Minter:     minter,
	})
	defer p.Close()

	if _, err := p.GetValid(context.Background()); err != nil {
		t.Fatalf("GetValid() failed: %v", err)
	}

	checker := &scriptedChecker{err: errors.New("balance endpoint down")}
	r := NewRefresher(p, checker, "*/15 * * * *", nil)
	r.refreshAll(context.Background())

	// A failed probe must not evict anything.
	state := p.Snapshot()
	if len(state.Active) != 1 {
		t.Errorf("Active = %v after failed probe, want untouched", state.Active)
	}
}
