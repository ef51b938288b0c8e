package models

// Profile is the authenticated user's profile returned by GET /me.
type Profile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
