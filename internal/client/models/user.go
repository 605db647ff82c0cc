package models

// User is the profile record returned by the backend on login, register and
// profile calls.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
}

// DisplayName returns the best human readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// Credential is the bearer token together with the user it was issued to.
type Credential struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
