// Package accounts provides the registered-user store.
//
// Accounts live as one JSON array under the "users" key of the kv store.
// They are append-only: nothing in the product ever edits or removes an
// account. Credentials are stored and compared in plaintext — a documented
// limitation inherited from the system this replaces, not an oversight.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nvellore/fraudwatch/internal/idgen"
	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/nvellore/fraudwatch/internal/syncutil"
)

// Errors
var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials or wrong user type")
)

// UserType declares which dashboard an account may reach.
type UserType string

const (
	TypeEmployee UserType = "employee"
	TypeAdmin    UserType = "admin"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == TypeEmployee || t == TypeAdmin
}

// Account is a registered user record. Never mutated after creation.
type Account struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"password"` // plaintext, exact-match comparison
	UserType   UserType  `json:"userType"`
	EmployeeID string    `json:"employeeId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store manages the users collection.
type Store struct {
	kv kvstore.Store
	mu *syncutil.ContextShardedMutex
}

// NewStore creates an account store over the given kv backend.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv, mu: syncutil.NewContextShardedMutex()}
}

// Register appends a new account. Fails with ErrDuplicateEmail if any
// existing account shares the email. The check-then-write is serialized
// so two concurrent signups cannot both pass the duplicate check.
func (s *Store) Register(ctx context.Context, account *Account) (*Account, error) {
	unlock, err := s.mu.LockContext(ctx, kvstore.KeyUsers)
	if err != nil {
		return nil, err
	}
	defer unlock()

	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, existing := range all {
		if existing.Email == account.Email {
			return nil, ErrDuplicateEmail
		}
	}

	if account.ID == "" {
		account.ID = idgen.WithPrefix("acc_")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	all = append(all, *account)
	if err := s.write(ctx, all); err != nil {
		return nil, err
	}
	return account, nil
}

// FindByCredentials scans for the first account matching email, password,
// and declared user type exactly. No case folding, no hashing.
func (s *Store) FindByCredentials(ctx context.Context, email, password string, userType UserType) (*Account, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	for i := range all {
		a := &all[i]
		if a.Email == email && a.Password == password && a.UserType == userType {
			found := *a
			return &found, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// All returns every registered account. A missing collection is empty; a
// collection that no longer decodes surfaces kvstore.ErrCorrupt.
func (s *Store) All(ctx context.Context) ([]Account, error) {
	doc, err := s.kv.Get(ctx, kvstore.KeyUsers)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return []Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	var all []Account
	if err := json.Unmarshal(doc, &all); err != nil {
		return nil, fmt.Errorf("decode users: %w", kvstore.ErrCorrupt)
	}
	return all, nil
}

func (s *Store) write(ctx context.Context, all []Account) error {
	doc, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.kv.Set(ctx, kvstore.KeyUsers, doc); err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	return nil
}
