// Package relay owns the per-request upstream lifecycle: picking an account,
// opening a chat session, solving the proof-of-work and starting the
// completion stream.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/yuanshang000/ds2api/internal/account"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/op"
	"github.com/yuanshang000/ds2api/internal/pow"
	"github.com/yuanshang000/ds2api/internal/upstream"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

const defaultMaxAttempts = 3

// ErrLoginFailed is returned when an account cannot obtain a token.
var ErrLoginFailed = errors.New("account login failed")

// ErrSessionFailed is returned when no chat session could be opened after
// exhausting retries and failover accounts.
var ErrSessionFailed = errors.New("failed to create upstream session")

// ErrPowFailed is returned when no proof-of-work could be produced.
var ErrPowFailed = errors.New("failed to produce pow response")

// Relay ties the account pool, upstream client and pow solver together.
type Relay struct {
	pool   *account.Pool
	client *upstream.Client
	solver *pow.Solver
	keys   map[string]struct{}
}

func New(pool *account.Pool, client *upstream.Client, solver *pow.Solver, keys []string) *Relay {
	allow := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allow[k] = struct{}{}
	}
	return &Relay{pool: pool, client: client, solver: solver, keys: allow}
}

// Session carries the auth state of one inbound request. Pooled sessions hold
// a checked-out account that must be released exactly once via Close.
type Session struct {
	Pooled  bool
	Account *model.Account
	Token   string

	relay     *Relay
	tried     map[string]struct{}
	refreshed bool
	closeOnce sync.Once
}

// Authorize resolves the caller's bearer token into a session. A key from the
// configured allowlist checks an account out of the pool; any other value is
// treated as the caller's own upstream token.
func (r *Relay) Authorize(ctx context.Context, bearer string) (*Session, error) {
	if _, ok := r.keys[bearer]; !ok {
		return &Session{Token: bearer, relay: r}, nil
	}

	s := &Session{Pooled: true, relay: r, tried: map[string]struct{}{}}
	acc, err := r.pool.Checkout(nil)
	if err != nil {
		return nil, err
	}
	s.Account = acc
	if !acc.HasToken() {
		if _, err := r.login(ctx, acc); err != nil {
			r.pool.Release(acc)
			return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
	}
	s.Token = acc.Token
	return s, nil
}

// Close returns a pooled session's account to the pool. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.Pooled && s.Account != nil {
			s.relay.pool.Release(s.Account)
		}
	})
}

func (r *Relay) login(ctx context.Context, acc *model.Account) (string, error) {
	token, err := r.client.Login(ctx, acc)
	if err != nil {
		return "", err
	}
	op.AccountTokenSave(acc.Identifier(), token)
	return token, nil
}

// refreshToken drops the current account's token and logs in again. Only
// meaningful for pooled sessions.
func (r *Relay) refreshToken(ctx context.Context, s *Session) bool {
	if !s.Pooled || s.Account == nil {
		return false
	}
	id := s.Account.Identifier()
	log.Infof("refreshing token for account %s", id)
	s.Account.Token = ""
	op.AccountTokenSave(id, "")
	token, err := r.login(ctx, s.Account)
	if err != nil {
		log.Errorf("token refresh for %s failed: %v", id, err)
		return false
	}
	s.Token = token
	return true
}

// swapAccount moves a pooled session onto a fresh account, excluding every
// account already tried in this request.
func (r *Relay) swapAccount(ctx context.Context, s *Session) error {
	if !s.Pooled {
		return errors.New("cannot swap account outside pooled mode")
	}
	if s.Account != nil {
		s.tried[s.Account.Identifier()] = struct{}{}
		r.pool.Release(s.Account)
		s.Account = nil
	}
	acc, err := r.pool.Checkout(s.tried)
	if err != nil {
		return err
	}
	if _, err := r.login(ctx, acc); err != nil {
		r.pool.Release(acc)
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	s.Account = acc
	s.Token = acc.Token
	s.refreshed = false
	return nil
}

// CreateSession opens an upstream chat session. On auth rejection a pooled
// session first refreshes its token once, then fails over to other accounts.
func (r *Relay) CreateSession(ctx context.Context, s *Session) (string, error) {
	for attempts := 0; attempts < defaultMaxAttempts; attempts++ {
		id, err := r.client.CreateSession(ctx, s.Token)
		if err == nil {
			return id, nil
		}
		log.Warnf("create session failed: %v", err)

		if !s.Pooled {
			continue
		}
		if upstream.IsAuthRejection(err) && !s.refreshed {
			if r.refreshToken(ctx, s) {
				s.refreshed = true
				attempts--
				continue
			}
			log.Warnf("token refresh failed, rotating account")
		}
		if swapErr := r.swapAccount(ctx, s); swapErr != nil {
			if errors.Is(swapErr, account.ErrNoAccountAvailable) {
				break
			}
			log.Errorf("account rotation failed: %v", swapErr)
		}
	}
	return "", ErrSessionFailed
}

// PowHeader fetches a challenge, solves it and returns the encoded header
// value. A solver miss retries with a fresh challenge; an upstream rejection
// rotates the account in pooled mode.
func (r *Relay) PowHeader(ctx context.Context, s *Session) (string, error) {
	for attempts := 0; attempts < defaultMaxAttempts; attempts++ {
		challenge, err := r.client.CreatePowChallenge(ctx, s.Token)
		if err != nil {
			log.Warnf("pow challenge fetch failed: %v", err)
			// only an upstream rejection burns the account; a transport
			// error just retries with the same one
			var apiErr *upstream.APIError
			if s.Pooled && errors.As(err, &apiErr) {
				if swapErr := r.swapAccount(ctx, s); swapErr != nil {
					if errors.Is(swapErr, account.ErrNoAccountAvailable) {
						break
					}
					log.Errorf("account rotation failed: %v", swapErr)
				}
			}
			continue
		}

		answer, err := r.solver.Solve(ctx, challenge)
		if err != nil {
			log.Warnf("pow solve failed: %v", err)
			continue
		}
		return pow.EncodeAnswer(challenge, answer)
	}
	return "", ErrPowFailed
}

// Completion runs the full pre-flight (pow) and starts the completion stream.
func (r *Relay) Completion(ctx context.Context, s *Session, sessionID, prompt string, thinking, search bool) (*http.Response, error) {
	powHeader, err := r.PowHeader(ctx, s)
	if err != nil {
		return nil, err
	}
	return r.client.Completion(ctx, upstream.CompletionRequest{
		SessionID:       sessionID,
		Prompt:          prompt,
		ThinkingEnabled: thinking,
		SearchEnabled:   search,
		Token:           s.Token,
		PowResponse:     powHeader,
	}, defaultMaxAttempts)
}
