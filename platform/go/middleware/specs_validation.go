package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3filter"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
)

// ValidateAuthenticationViaSwagger satisfies operations that declare bearerAuth in the contract.
// It runs after the JWT middleware, so a verified operator is already on the request context.
// Scopes listed on the security requirement are treated as required roles.
func ValidateAuthenticationViaSwagger(_ context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}
	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}

	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil {
		return errors.New("missing or invalid bearer token")
	}
	for _, role := range input.Scopes {
		if !creds.HasRole(role) {
			return fmt.Errorf("role %q required", role)
		}
	}
	return nil
}
