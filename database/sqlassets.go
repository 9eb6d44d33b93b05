package sqlassets

import "embed"

// ProvisioningSQL creates the provisioning store tables inside the admin schema.
//
//go:embed schema/provisioning.sql
var ProvisioningSQL string

// Bundles holds the per-tier workspace migration bundles (<tier>/manifest.yaml plus SQL files).
//
//go:embed bundles
var Bundles embed.FS
