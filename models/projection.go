package models

// Projection is the view of another account handed to elevated callers.
// Email and Role are only filled for the Coolest Kid tier.
type Projection struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Image     string `json:"image"`
	Role      Role   `json:"role,omitempty"`
	Country   string `json:"country"`
}

// Project returns the view of a visible to viewer. ok is false when viewer
// holds no elevated role.
func Project(viewer Role, a *Account) (p Projection, ok bool) {
	switch viewer {
	case RoleCoolerKid:
		return Projection{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Image:     a.Image,
			Country:   a.Country,
		}, true
	case RoleCoolestKid:
		return Projection{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
			Image:     a.Image,
			Role:      a.Role,
			Country:   a.Country,
		}, true
	}
	return Projection{}, false
}

// ProjectAll applies Project to every account
func ProjectAll(viewer Role, accounts []*Account) ([]Projection, bool) {
	out := make([]Projection, 0, len(accounts))
	for _, a := range accounts {
		p, ok := Project(viewer, a)
		if !ok {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

// RoleUpdateRequest is the body of PUT /role-update
type RoleUpdateRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// Query returns the selector part of the request
func (r RoleUpdateRequest) Query() AccountQuery {
	return AccountQuery{Email: r.Email, FirstName: r.FirstName, LastName: r.LastName}
}

// MessageResponse is the generic success body
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the generic failure body
type ErrorResponse struct {
	Error string `json:"error"`
}
