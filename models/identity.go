package models

// Identity is the authenticated principal derived from a verified Supabase token.
// A fresh Identity is built for every authorization decision; it is never cached.
type Identity struct {
	// Sub is the provider-assigned subject. Never empty on a returned Identity.
	Sub string `json:"sub"`

	// Optional display attributes
	UserID  *string `json:"user_id"`
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
	Email   *string `json:"email"`
}

// NewIdentity creates an Identity for the given subject with UserID mirroring it
func NewIdentity(sub string) *Identity {
	userID := sub
	return &Identity{
		Sub:    sub,
		UserID: &userID,
	}
}

// DisplayName returns the name if present, falling back to the email and then the subject
func (i *Identity) DisplayName() string {
	if i.Name != nil && *i.Name != "" {
		return *i.Name
	}
	if i.Email != nil && *i.Email != "" {
		return *i.Email
	}
	return i.Sub
}
