// Package accounts implements the account lifecycle: signup, signin, profile
// changes, role management and the role-filtered listings.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"account-service/auth"
	"account-service/models"
)

// DefaultPassword is substituted when signup or signin omits a password
const DefaultPassword = "P@ssword.1"

const listCacheKeyPrefix = "accounts:list:"

// Hasher hashes and verifies passwords
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Tokens issues and verifies session tokens
type Tokens interface {
	Issue(accountID string) (string, error)
	Verify(token string) (string, error)
	TTL() time.Duration
}

// Cache holds serialized listings
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(keys ...string)
}

// Session is the credential pair handed to a client after signup or signin
type Session struct {
	AccountID string
	Token     string
	CSRFToken string
}

// Service carries the account operations. The cache is optional.
type Service struct {
	store           models.AccountStore
	hasher          Hasher
	tokens          Tokens
	cache           Cache
	defaultPassword string

	// listGen counts listing invalidations
	listGen atomic.Uint64
}

// Option configures a Service
type Option func(*Service)

// WithCache enables listing caching
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithDefaultPassword replaces DefaultPassword
func WithDefaultPassword(password string) Option {
	return func(s *Service) {
		if password != "" {
			s.defaultPassword = password
		}
	}
}

// NewService creates the account service
func NewService(store models.AccountStore, hasher Hasher, tokens Tokens, opts ...Option) *Service {
	s := &Service{
		store:           store,
		hasher:          hasher,
		tokens:          tokens,
		defaultPassword: DefaultPassword,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL is the lifetime of issued tokens and their cookies
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// credentials applies the password default and validates both fields
func (s *Service) credentials(fields models.AccountFields) (email, password string, err error) {
	if fields.Email != nil {
		email = *fields.Email
	}
	password = s.defaultPassword
	if fields.Password != nil && *fields.Password != "" {
		password = *fields.Password
	}

	if err := auth.ValidateEmail(email); err != nil {
		return "", "", newError(KindValidation, err.Error())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", "", newError(KindValidation, err.Error())
	}
	return email, password, nil
}

// Signup creates a Cool Kid account from fields and opens its first session
func (s *Service) Signup(ctx context.Context, fields models.AccountFields) (*Session, error) {
	email, password, err := s.credentials(fields)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internalError(fmt.Errorf("hash password: %w", err))
	}

	account := &models.Account{
		Email:    email,
		Password: hash,
		Role:     models.RoleCoolKid,
	}
	fields.Profile.Apply(account)

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, newError(KindConflict, "Email is taken!")
		}
		return nil, internalError(err)
	}
	s.invalidateListings()

	return s.startSession(ctx, account.ID)
}

// Signin checks the credentials and replaces the account's session
func (s *Service) Signin(ctx context.Context, fields models.AccountFields) (*Session, error) {
	email, password, err := s.credentials(fields)
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindOne(ctx, models.AccountQuery{Email: email})
	if errors.Is(err, models.ErrAccountNotFound) {
		return nil, newError(KindNotFound, "Email does not exist")
	}
	if err != nil {
		return nil, internalError(err)
	}

	if !s.hasher.Verify(password, account.Password) {
		return nil, newError(KindValidation, "Wrong password")
	}

	return s.startSession(ctx, account.ID)
}

func (s *Service) startSession(ctx context.Context, accountID string) (*Session, error) {
	token, err := s.tokens.Issue(accountID)
	if err != nil {
		return nil, internalError(fmt.Errorf("issue token: %w", err))
	}
	if err := s.store.SetToken(ctx, accountID, token); err != nil {
		return nil, internalError(fmt.Errorf("store token: %w", err))
	}
	csrf, err := auth.GenerateCSRFToken()
	if err != nil {
		return nil, internalError(err)
	}
	return &Session{AccountID: accountID, Token: token, CSRFToken: csrf}, nil
}

// Authenticate resolves a presented session token to its account. Only the
// most recently issued token of an account is accepted.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, newError(KindUnauthorized, MsgTokenMissing)
	}

	accountID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Message: MsgTokenInvalid, Err: err}
	}

	account, err := s.store.FindByID(ctx, accountID)
	if errors.Is(err, models.ErrAccountNotFound) {
		return nil, newError(KindNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, internalError(err)
	}

	if account.Token != token {
		return nil, newError(KindUnauthorized, MsgTokenInvalid)
	}
	return account, nil
}

// Update applies a partial profile change to the account id
func (s *Service) Update(ctx context.Context, id string, fields models.AccountFields) error {
	changes := models.AccountChanges{Profile: fields.Profile}

	if fields.Email != nil {
		if err := auth.ValidateEmail(*fields.Email); err != nil {
			return newError(KindValidation, err.Error())
		}
		changes.Email = fields.Email
	}
	if fields.Password != nil {
		if err := auth.ValidatePassword(*fields.Password); err != nil {
			return newError(KindValidation, err.Error())
		}
		hash, err := s.hasher.Hash(*fields.Password)
		if err != nil {
			return internalError(fmt.Errorf("hash password: %w", err))
		}
		changes.Password = &hash
	}

	if changes.Empty() {
		if _, err := s.store.FindByID(ctx, id); err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				return newError(KindNotFound, "Failed to update user with id: "+id)
			}
			return internalError(err)
		}
		return nil
	}

	err := s.store.Update(ctx, id, changes)
	switch {
	case errors.Is(err, models.ErrEmailTaken):
		return newError(KindConflict, "Email is already taken by another user")
	case errors.Is(err, models.ErrAccountNotFound):
		return newError(KindNotFound, "Failed to update user with id: "+id)
	case err != nil:
		return internalError(err)
	}
	s.invalidateListings()
	return nil
}

// Delete removes the account id
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, models.ErrAccountNotFound) {
		return newError(KindNotFound, "Failed to delete user with with id:"+id)
	}
	if err != nil {
		return internalError(err)
	}
	s.invalidateListings()
	return nil
}

// Get returns the account id
func (s *Service) Get(ctx context.Context, id string) (*models.Account, error) {
	if id == "" {
		return nil, newError(KindValidation, "Requested user ID is missing")
	}
	account, err := s.store.FindByID(ctx, id)
	if errors.Is(err, models.ErrAccountNotFound) {
		return nil, newError(KindNotFound, "Failed to fetch data with id: "+id)
	}
	if err != nil {
		return nil, internalError(err)
	}
	return account, nil
}

const msgNoMatch = "No user found with the provided email or name combination."

// UpdateRole assigns req.Role to the account selected by req
func (s *Service) UpdateRole(ctx context.Context, req models.RoleUpdateRequest) error {
	if !req.Role.Valid() {
		return newError(KindValidation, "Invalid role provided. Allowed roles are 'Cool Kid', 'Cooler Kid', 'Coolest Kid'.")
	}
	query := req.Query()
	if !query.Valid() {
		return newError(KindValidation, "Either email or both firstName and lastName must be provided to update the user's role.")
	}

	account, err := s.store.FindOne(ctx, query)
	if errors.Is(err, models.ErrAccountNotFound) {
		return newError(KindNotFound, msgNoMatch)
	}
	if err != nil {
		return internalError(err)
	}

	if err := s.store.SetRole(ctx, account.ID, req.Role); err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return newError(KindNotFound, msgNoMatch)
		}
		return internalError(err)
	}
	s.invalidateListings()
	return nil
}

// Search returns viewer's projection of the first account matching query
func (s *Service) Search(ctx context.Context, viewer models.Role, query models.AccountQuery) (*models.Projection, error) {
	if !query.Valid() {
		return nil, newError(KindValidation, "Either email or both firstName and lastName must be provided for the search.")
	}

	account, err := s.store.FindOne(ctx, query)
	if errors.Is(err, models.ErrAccountNotFound) {
		return nil, newError(KindNotFound, msgNoMatch)
	}
	if err != nil {
		return nil, internalError(err)
	}

	projection, ok := models.Project(viewer, account)
	if !ok {
		return nil, newError(KindForbidden, MsgRoleForbidden)
	}
	return &projection, nil
}

// List returns viewer's projection of every account
func (s *Service) List(ctx context.Context, viewer models.Role) ([]models.Projection, error) {
	if !viewer.In(models.ElevatedRoles) {
		return nil, newError(KindForbidden, MsgRoleForbidden)
	}

	key := listCacheKeyPrefix + string(viewer)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			var projections []models.Projection
			if err := json.Unmarshal(cached, &projections); err == nil && len(projections) > 0 {
				return projections, nil
			}
		}
	}

	gen := s.listGen.Load()
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	if len(accounts) == 0 {
		return nil, newError(KindNotFound, "No users found")
	}

	projections, _ := models.ProjectAll(viewer, accounts)

	// skip caching when a write invalidated listings during the read
	if s.cache != nil && s.listGen.Load() == gen {
		if raw, err := json.Marshal(projections); err == nil {
			s.cache.Set(key, raw)
		}
	}
	return projections, nil
}

func (s *Service) invalidateListings() {
	s.listGen.Add(1)
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(models.ElevatedRoles))
	for _, role := range models.ElevatedRoles {
		keys = append(keys, listCacheKeyPrefix+string(role))
	}
	s.cache.Delete(keys...)
}
