package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/apps/internal/wiring"
	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
)

// buildAuthMiddleware constructs the JWT middleware for the configured identity provider.
func buildAuthMiddleware(ctx context.Context, provider string, stack *wiring.Stack, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch provider {
	case "firebase":
		fbAuth, err := stack.FirebaseAuth(ctx)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", provider))
	}

	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor)
}
