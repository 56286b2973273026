// Package session provides the current-user session and route admission.
//
// The session is a snapshot of one account stored under the "currentUser"
// key — overwritten on every login or signup, absent means logged out. It
// persists until something else overwrites or clears the key; there is no
// expiry and no logout operation in the product today.
//
// Admission is re-evaluated from storage on every request and is advisory:
// anyone who can write the kv store can forge a session. That ceiling is
// inherited from the client-side system this replaces and is documented,
// not fixed, here.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvellore/fraudwatch/internal/accounts"
	"github.com/nvellore/fraudwatch/internal/kvstore"
)

// ErrNoSession is returned by CurrentUser when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// Guard owns the session record and decides route admission.
type Guard struct {
	accounts *accounts.Store
	kv       kvstore.Store
}

// NewGuard creates a session guard.
func NewGuard(accountStore *accounts.Store, kv kvstore.Store) *Guard {
	return &Guard{accounts: accountStore, kv: kv}
}

// Login checks credentials against the account store and, on success,
// replaces the session snapshot. Wrong password and right-password/
// wrong-declared-type both return accounts.ErrInvalidCredentials.
func (g *Guard) Login(ctx context.Context, email, password string, userType accounts.UserType) (*accounts.Account, error) {
	account, err := g.accounts.FindByCredentials(ctx, email, password, userType)
	if err != nil {
		return nil, err
	}
	if err := g.setCurrent(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Signup registers a new account and immediately makes it the session.
func (g *Guard) Signup(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	created, err := g.accounts.Register(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := g.setCurrent(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// CurrentUser returns the active session snapshot, or ErrNoSession.
func (g *Guard) CurrentUser(ctx context.Context) (*accounts.Account, error) {
	doc, err := g.kv.Get(ctx, kvstore.KeyCurrentUser)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var account accounts.Account
	if err := json.Unmarshal(doc, &account); err != nil {
		return nil, fmt.Errorf("decode session: %w", kvstore.ErrCorrupt)
	}
	return &account, nil
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed  bool
	Redirect string // where to send a denied client
}

// Authorize applies the route-admission rule: no session denies with a
// redirect to the login page; a session of the wrong type denies with a
// redirect to the landing page; anything else is allowed. Pass an empty
// requiredType for routes any signed-in user may reach.
func (g *Guard) Authorize(ctx context.Context, requiredType accounts.UserType) (Decision, *accounts.Account) {
	account, err := g.CurrentUser(ctx)
	if err != nil {
		return Decision{Allowed: false, Redirect: "/login"}, nil
	}
	if requiredType != "" && account.UserType != requiredType {
		return Decision{Allowed: false, Redirect: "/"}, nil
	}
	return Decision{Allowed: true}, account
}

func (g *Guard) setCurrent(ctx context.Context, account *accounts.Account) error {
	doc, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := g.kv.Set(ctx, kvstore.KeyCurrentUser, doc); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
