package database

import (
	"context"
	"sync"
	"time"

	"account-service/models"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process memory. It backs the "memory"
// driver for local runs and serves as the store in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	byEmail  map[string]string
	order    []string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Extra != nil {
		c.Extra = make(map[string]interface{}, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[account.Email]; taken {
		return models.ErrEmailTaken
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	s.accounts[account.ID] = cloneAccount(account)
	s.byEmail[account.Email] = account.ID
	s.order = append(s.order, account.ID)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *MemoryStore) FindOne(ctx context.Context, query models.AccountQuery) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if a := s.accounts[id]; query.Matches(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneAccount(s.accounts[id]))
	}
	return out, nil
}

func (s *MemoryStore) SetToken(ctx context.Context, id, token string) error {
	return s.modify(id, func(a *models.Account) error {
		a.Token = token
		return nil
	})
}

func (s *MemoryStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.modify(id, func(a *models.Account) error {
		a.Role = role
		return nil
	})
}

func (s *MemoryStore) Update(ctx context.Context, id string, changes models.AccountChanges) error {
	return s.modify(id, func(a *models.Account) error {
		if changes.Email != nil && *changes.Email != a.Email {
			if owner, taken := s.byEmail[*changes.Email]; taken && owner != id {
				return models.ErrEmailTaken
			}
			delete(s.byEmail, a.Email)
			a.Email = *changes.Email
			s.byEmail[a.Email] = id
		}
		if changes.Password != nil {
			a.Password = *changes.Password
		}
		changes.Profile.Apply(a)
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, a.Email)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// modify applies fn to the stored account under the write lock
func (s *MemoryStore) modify(id string, fn func(a *models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	if err := fn(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}
