package domain

// User is the authenticated actor of the session.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Credentials are forwarded to the backend login endpoint as-is.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is what the backend hands back on a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
