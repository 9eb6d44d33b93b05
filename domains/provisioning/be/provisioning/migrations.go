package provisioning

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/storage"
)

const manifestSchemaURL = "memory://schemas/migration-manifest.json"

const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tier", "migrations"],
  "additionalProperties": false,
  "properties": {
    "tier": {"type": "string", "enum": ["standard", "premium"]},
    "migrations": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "file"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "pattern": "^[0-9]{3}_[a-z0-9_]+$"},
          "file": {"type": "string", "pattern": "\\.sql$"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

type manifest struct {
	Tier       string `yaml:"tier"`
	Migrations []struct {
		ID          string `yaml:"id"`
		File        string `yaml:"file"`
		Description string `yaml:"description"`
	} `yaml:"migrations"`
}

// MigrationLoader reads per-tier migration bundles: <tier>/manifest.yaml listing SQL files
// relative to the bundle root.
type MigrationLoader struct {
	reader storage.Reader
	schema *jsonschema.Schema
}

// NewMigrationLoader compiles the manifest schema and returns a loader over r.
func NewMigrationLoader(r storage.Reader) (*MigrationLoader, error) {
	if r == nil {
		return nil, errors.New("migration loader requires a reader")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(manifestSchemaURL, strings.NewReader(manifestSchema)); err != nil {
		return nil, fmt.Errorf("register manifest schema: %w", err)
	}
	compiled, err := compiler.Compile(manifestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &MigrationLoader{reader: r, schema: compiled}, nil
}

// Migrations returns the ordered migrations for tier and a bundle identifier that changes
// whenever the manifest does. A malformed bundle is a permanent failure.
func (l *MigrationLoader) Migrations(ctx context.Context, tier service.Tier) (string, []service.Migration, error) {
	raw, err := l.reader.Read(ctx, string(tier)+"/manifest.yaml")
	if err != nil {
		return "", nil, l.readErr(err)
	}

	m, err := l.decode(raw)
	if err != nil {
		return "", nil, provider.NewPermanent("migrations", "load manifest", fmt.Errorf("%s manifest: %w", tier, err))
	}
	if m.Tier != string(tier) {
		return "", nil, provider.NewPermanent("migrations", "load manifest", fmt.Errorf("manifest declares tier %q, want %q", m.Tier, tier))
	}

	seen := make(map[string]bool, len(m.Migrations))
	out := make([]service.Migration, 0, len(m.Migrations))
	for _, entry := range m.Migrations {
		if seen[entry.ID] {
			return "", nil, provider.NewPermanent("migrations", "load manifest", fmt.Errorf("duplicate migration id %q", entry.ID))
		}
		seen[entry.ID] = true

		sql, err := l.reader.Read(ctx, entry.File)
		if err != nil {
			return "", nil, l.readErr(err)
		}
		if len(bytes.TrimSpace(sql)) == 0 {
			return "", nil, provider.NewPermanent("migrations", "load migration", fmt.Errorf("%s is empty", entry.File))
		}
		out = append(out, service.Migration{ID: entry.ID, SQL: string(sql), Checksum: checksum(sql)})
	}

	return fmt.Sprintf("%s@%s", tier, checksum(raw)[:12]), out, nil
}

// Check verifies the bundle source is reachable.
func (l *MigrationLoader) Check(ctx context.Context) error {
	return l.reader.Check(ctx)
}

func (l *MigrationLoader) decode(raw []byte) (manifest, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return manifest{}, fmt.Errorf("decode yaml: %w", err)
	}
	// round-trip through JSON so the validator sees JSON types
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return manifest{}, fmt.Errorf("convert manifest: %w", err)
	}
	var generic any
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return manifest{}, fmt.Errorf("convert manifest: %w", err)
	}
	if err := l.schema.Validate(generic); err != nil {
		return manifest{}, fmt.Errorf("schema validation: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func (l *MigrationLoader) readErr(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return provider.NewPermanent("migrations", "read bundle", err)
	}
	return provider.NewTransient("migrations", "read bundle", err)
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var _ service.MigrationSource = (*MigrationLoader)(nil)
