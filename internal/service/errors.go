package service

// OAuthError is a grant failure carrying the HTTP status and error code
// to surface in the RFC 6749 error response body.
type OAuthError struct {
	Status      int
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}
