// Package contracts embeds the OpenAPI documents served and enforced by the API server.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ProvisioningYAML is the admin provisioning contract.
//
//go:embed provisioning.yaml
var ProvisioningYAML []byte

// GetSwagger parses and validates the provisioning contract. Each call returns a fresh document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(ProvisioningYAML)
	if err != nil {
		return nil, fmt.Errorf("load provisioning contract: %w", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate provisioning contract: %w", err)
	}
	return spec, nil
}
