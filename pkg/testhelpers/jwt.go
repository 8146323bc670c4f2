package testhelpers

import (
	"encoding/base64"
	"fmt"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
func GenerateTestJWT(sub, tenantID, role string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if tenantID != "" {
		payload += fmt.Sprintf(`,"tid":"%s"`, tenantID)
	}
	if role != "" {
		payload += fmt.Sprintf(`,"role":"%s"`, role)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for the
// Authorization header.
func GenerateTestJWTWithBearer(sub, tenantID, role string) string {
	return "Bearer " + GenerateTestJWT(sub, tenantID, role)
}
