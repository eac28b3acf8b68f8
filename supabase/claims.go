package supabase

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/notehub/notes-api/models"
)

const (
	claimEmail        = "email"
	claimUserMetadata = "user_metadata"
	metaEmail         = "email"
	metaFullName      = "full_name"
	metaName          = "name"
)

// VerifiedClaims is the decoded, signature-checked token payload.
// Subject is guaranteed non-empty.
type VerifiedClaims struct {
	Subject string
	Payload jwt.MapClaims
}

// Identity maps the claims onto a normalized Identity.
//
// Email comes from the top-level claim when that key is present, otherwise from
// user_metadata.email. Name is user_metadata.full_name, then user_metadata.name.
// Any other claim is ignored.
func (c *VerifiedClaims) Identity() *models.Identity {
	identity := models.NewIdentity(c.Subject)

	metadata, hasMetadata := c.Payload[claimUserMetadata].(map[string]interface{})

	if raw, ok := c.Payload[claimEmail]; ok {
		identity.Email = stringValue(raw)
	} else if hasMetadata {
		identity.Email = stringValue(metadata[metaEmail])
	}

	if hasMetadata {
		identity.Name = firstNonEmpty(metadata[metaFullName], metadata[metaName])
	}

	return identity
}

// stringValue returns a pointer to v when it is a string
func stringValue(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...interface{}) *string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
