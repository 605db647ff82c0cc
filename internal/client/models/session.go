package models

// SessionStatus is the state of the authentication gate.
type SessionStatus string

const (
	SessionLoading         SessionStatus = "loading"
	SessionAuthenticated   SessionStatus = "authenticated"
	SessionUnauthenticated SessionStatus = "unauthenticated"
)

// Session is an in-memory snapshot of whether, and as whom, the device is
// signed in. Token and User are set only when Status is SessionAuthenticated.
type Session struct {
	Status SessionStatus
	Token  string
	User   *User
}

func (s Session) IsAuthenticated() bool {
	return s.Status == SessionAuthenticated
}
