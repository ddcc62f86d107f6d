package account

import (
	"testing"

	"github.com/yuanshang000/ds2api/internal/model"
)

func acc(email, token string) *model.Account {
	return &model.Account{Email: email, Password: "pw", Token: token}
}

func TestPool_Invariant(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", ""), acc("b@x.com", "t"), acc("c@x.com", "")})

	check := func() {
		st := p.Status()
		if st.Available+st.InUse != st.Total {
			t.Fatalf("invariant broken: available=%d in_use=%d total=%d", st.Available, st.InUse, st.Total)
		}
	}

	check()
	a1, err := p.Checkout(nil)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	check()
	a2, _ := p.Checkout(nil)
	check()
	p.Release(a1)
	check()
	p.Release(a2)
	check()
}

func TestPool_TokenTierPriority(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", ""), acc("b@x.com", "tok")})
	got, err := p.Checkout(nil)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got.Identifier() != "b@x.com" {
		t.Errorf("expected token-holding account b@x.com first, got %s", got.Identifier())
	}
}

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", "t"), acc("b@x.com", "t"), acc("c@x.com", "t")})

	first, _ := p.Checkout(nil)
	if first.Identifier() != "a@x.com" {
		t.Fatalf("expected a@x.com first, got %s", first.Identifier())
	}
	p.Release(first)

	// a was just used: b and c must both be offered before a comes around again.
	var order []string
	for i := 0; i < 3; i++ {
		got, err := p.Checkout(nil)
		if err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
		order = append(order, got.Identifier())
	}
	want := []string{"b@x.com", "c@x.com", "a@x.com"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("round-robin order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestPool_Exclude(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", "t"), acc("b@x.com", "t")})
	exclude := map[string]struct{}{"a@x.com": {}}
	got, err := p.Checkout(exclude)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got.Identifier() != "b@x.com" {
		t.Errorf("expected b@x.com, got %s", got.Identifier())
	}

	exclude["b@x.com"] = struct{}{}
	if _, err := p.Checkout(exclude); err != ErrNoAccountAvailable {
		t.Errorf("expected ErrNoAccountAvailable, got %v", err)
	}
}

func TestPool_Exhaustion(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", "")})
	a, err := p.Checkout(nil)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := p.Checkout(nil); err != ErrNoAccountAvailable {
		t.Errorf("expected exhaustion error, got %v", err)
	}
	p.Release(a)
	if _, err := p.Checkout(nil); err != nil {
		t.Errorf("checkout after release should succeed, got %v", err)
	}
}

func TestPool_ReleaseNotInUse(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", "")})
	// Must not panic or corrupt state.
	p.Release(acc("stranger@x.com", ""))
	st := p.Status()
	if st.Available != 1 || st.InUse != 0 {
		t.Errorf("unexpected status after stray release: %+v", st)
	}
}

func TestPool_ResetAbandonsInFlight(t *testing.T) {
	p := NewPool([]*model.Account{acc("a@x.com", "")})
	a, _ := p.Checkout(nil)
	p.Reset([]*model.Account{acc("b@x.com", "")})
	p.Release(a) // no-op, a belongs to the old generation
	st := p.Status()
	if st.Available != 1 || st.Total != 1 {
		t.Errorf("unexpected status after reset: %+v", st)
	}
}
