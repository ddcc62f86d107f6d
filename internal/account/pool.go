// Package account holds the round-robin pool of upstream credentials.
package account

import (
	"errors"
	"sync"

	"github.com/samber/lo"

	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// ErrNoAccountAvailable is returned by Checkout when every configured account
// is busy or excluded. Callers surface this as a too-many-requests condition.
var ErrNoAccountAvailable = errors.New("no account available")

// Pool is a FIFO round-robin queue of accounts. Checkout removes an account
// from the available queue; Release puts it back at the tail. Both available
// and in-use state are guarded by one mutex so no caller ever observes a
// half-updated pool.
type Pool struct {
	mu        sync.Mutex
	available []*model.Account
	inUse     map[string]*model.Account
	total     int
}

// NewPool builds a pool over the given accounts, preserving config order
// except that accounts with a cached token are sorted to the front.
func NewPool(accounts []*model.Account) *Pool {
	p := &Pool{
		inUse: make(map[string]*model.Account),
		total: len(accounts),
	}
	// Stable two-tier order: token holders first, then the rest.
	withToken, withoutToken := lo.FilterReject(accounts, func(acc *model.Account, _ int) bool {
		return acc.HasToken()
	})
	p.available = append(withToken, withoutToken...)
	log.Infof("account pool initialized with %d accounts", len(accounts))
	return p
}

// Checkout selects the next eligible account. Accounts whose identifier is in
// exclude are skipped. Within the eligible set, the first pass prefers
// accounts that already hold a token; the second pass takes any account.
func (p *Pool) Checkout(exclude map[string]struct{}) (*model.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pick := func(needToken bool) *model.Account {
		for i, acc := range p.available {
			id := acc.Identifier()
			if id == "" {
				continue
			}
			if _, skip := exclude[id]; skip {
				continue
			}
			if needToken && !acc.HasToken() {
				continue
			}
			p.available = append(p.available[:i], p.available[i+1:]...)
			p.inUse[id] = acc
			return acc
		}
		return nil
	}

	if acc := pick(true); acc != nil {
		log.Debugf("checkout account %s (cached token), %d left", acc.Identifier(), len(p.available))
		return acc, nil
	}
	if acc := pick(false); acc != nil {
		log.Debugf("checkout account %s (login required), %d left", acc.Identifier(), len(p.available))
		return acc, nil
	}
	log.Warnf("no eligible account: available=%d in_use=%d excluded=%d", len(p.available), len(p.inUse), len(exclude))
	return nil, ErrNoAccountAvailable
}

// Release puts a checked-out account back at the tail of the queue. Releasing
// an account that is not checked out is a no-op; this happens legitimately
// when the pool was reset mid-request.
func (p *Pool) Release(acc *model.Account) {
	if acc == nil {
		return
	}
	id := acc.Identifier()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inUse[id]; !ok {
		log.Warnf("release of account %s not in use, skipping", id)
		return
	}
	delete(p.inUse, id)
	p.available = append(p.available, acc)
	log.Debugf("released account %s, queue length %d", id, len(p.available))
}

// Status reports pool occupancy. Total is the configured account count rather
// than available+in_use, so state drift shows up instead of hiding.
func (p *Pool) Status() model.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.PoolStatus{
		Available: len(p.available),
		InUse:     len(p.inUse),
		Total:     p.total,
		AvailableAccounts: lo.Map(p.available, func(acc *model.Account, _ int) string {
			return acc.Identifier()
		}),
		InUseAccounts: lo.Keys(p.inUse),
	}
}

// Reset swaps in a fresh account list. In-flight accounts are abandoned;
// their eventual Release becomes a logged no-op.
func (p *Pool) Reset(accounts []*model.Account) {
	fresh := NewPool(accounts)
	p.mu.Lock()
	p.available = fresh.available
	p.inUse = fresh.inUse
	p.total = fresh.total
	p.mu.Unlock()
}
