package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Role is the privilege tier of an account
type Role string

const (
	RoleCoolKid    Role = "Cool Kid"
	RoleCoolerKid  Role = "Cooler Kid"
	RoleCoolestKid Role = "Coolest Kid"
)

// AllRoles lists every assignable role, lowest tier first
var AllRoles = []Role{RoleCoolKid, RoleCoolerKid, RoleCoolestKid}

// ElevatedRoles may list, search and re-assign other accounts
var ElevatedRoles = []Role{RoleCoolerKid, RoleCoolestKid}

// Valid reports whether r is one of AllRoles
func (r Role) Valid() bool {
	return r.In(AllRoles)
}

// In reports whether r is a member of roles
func (r Role) In(roles []Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Store errors shared by every AccountStore implementation
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already taken")
)

// Account represents a persisted account.
// Password holds the bcrypt hash and Token the current session token;
// MarshalJSON never emits either of them.
type Account struct {
	ID        string
	Email     string
	Password  string
	Role      Role
	Token     string
	FirstName string
	LastName  string
	Image     string
	Country   string
	Extra     map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON flattens Extra next to the known fields, like the stored document
func (a Account) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(a.Extra)+10)
	for k, v := range a.Extra {
		doc[k] = v
	}
	doc["_id"] = a.ID
	doc["email"] = a.Email
	doc["role"] = a.Role
	doc["createdAt"] = a.CreatedAt
	doc["updatedAt"] = a.UpdatedAt
	for key, value := range map[string]string{
		"firstName": a.FirstName,
		"lastName":  a.LastName,
		"image":     a.Image,
		"country":   a.Country,
	} {
		if value != "" {
			doc[key] = value
		}
	}
	return json.Marshal(doc)
}

// Profile carries the pass-through fields submitted on signup or update.
// Nil pointers mean "not submitted".
type Profile struct {
	FirstName *string
	LastName  *string
	Image     *string
	Country   *string
	Extra     map[string]interface{}
}

// Apply copies every submitted field of p onto a
func (p Profile) Apply(a *Account) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.Image != nil {
		a.Image = *p.Image
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	if len(p.Extra) > 0 {
		if a.Extra == nil {
			a.Extra = make(map[string]interface{}, len(p.Extra))
		}
		for k, v := range p.Extra {
			a.Extra[k] = v
		}
	}
}

// AccountChanges describes a partial update of an account.
// Password, when set, is already hashed.
type AccountChanges struct {
	Email    *string
	Password *string
	Profile  Profile
}

// Empty reports whether the changes would modify nothing
func (c AccountChanges) Empty() bool {
	p := c.Profile
	return c.Email == nil && c.Password == nil &&
		p.FirstName == nil && p.LastName == nil && p.Image == nil && p.Country == nil &&
		len(p.Extra) == 0
}

// AccountQuery selects an account by email, or by first and last name
type AccountQuery struct {
	Email     string
	FirstName string
	LastName  string
}

// Valid reports whether the query names a selector
func (q AccountQuery) Valid() bool {
	return q.Email != "" || (q.FirstName != "" && q.LastName != "")
}

// Matches reports whether a satisfies the query. Email wins over names.
func (q AccountQuery) Matches(a *Account) bool {
	if q.Email != "" {
		return a.Email == q.Email
	}
	return a.FirstName == q.FirstName && a.LastName == q.LastName
}

// AccountStore is the document-store collaborator behind the accounts
// collection. Create must enforce email uniqueness atomically and report a
// conflict as ErrEmailTaken; lookups report absence as ErrAccountNotFound.
type AccountStore interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindOne(ctx context.Context, query AccountQuery) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	SetToken(ctx context.Context, id, token string) error
	SetRole(ctx context.Context, id string, role Role) error
	Update(ctx context.Context, id string, changes AccountChanges) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
