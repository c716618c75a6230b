package services

// Session identifies the signed-in user. Every engine operation receives it
// explicitly; the zero value means nobody is signed in.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (session Session) Authenticated() bool {
	return session.UserID != ""
}

func requireSession(session Session) error {
	if !session.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}
