package driven

// AdminAuth checks bearer tokens on the operator endpoints
type AdminAuth interface {
	// Verify returns domain.ErrUnauthorized unless token is the admin token
	Verify(token string) error
}
