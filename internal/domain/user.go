package domain

type UserProfile struct {
	ID      string `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

// Session is the client's view of who is signed in. A cookie-only session has
// a User but no Token.
type Session struct {
	User  *UserProfile
	Token string
}

func (s Session) Authenticated() bool {
	return s.User != nil
}
