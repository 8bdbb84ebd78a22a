package domain

// Principal holds the verified claims of the identity provider.
// Only ID is required; the rest seed a new account.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"name,omitempty"`
	Image    string `json:"picture,omitempty"`
}

// IsZero reports whether no principal is present.
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// Viewer is the resolved caller of an operation.
type Viewer struct {
	UserID    string
	Principal string
}
