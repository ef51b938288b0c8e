package models

// TokenPair is the access/refresh credential pair issued by the backend. The
// two tokens are always stored and cleared together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether either half of the pair is missing.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" || p.RefreshToken == ""
}

// TokenBody is the {"token": ...} envelope used by the backend.
type TokenBody struct {
	Token string `json:"token"`
}

// TokenResponse is the body returned by /auth/login and /auth/refresh.
type TokenResponse struct {
	Access  TokenBody `json:"access"`
	Refresh TokenBody `json:"refresh"`
}

// Pair converts the wire response into a TokenPair.
func (r TokenResponse) Pair() TokenPair {
	return TokenPair{AccessToken: r.Access.Token, RefreshToken: r.Refresh.Token}
}
