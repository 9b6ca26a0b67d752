package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/chartdeck/chartdeck-backend/internal/types"
)

//go:embed bundles.yaml
var builtinCatalog []byte

type catalogFile struct {
	Bundles []catalogEntry `yaml:"bundles"`
}

type catalogEntry struct {
	Key          string         `yaml:"key"`
	ChartType    string         `yaml:"chart_type"`
	Version      int            `yaml:"version"`
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	DataSchema   map[string]any `yaml:"data_schema"`
	ConfigSchema map[string]any `yaml:"config_schema"`
	OutputSchema map[string]any `yaml:"output_schema"`
	Defaults     map[string]any `yaml:"defaults"`
}

// BundleSeeder is the slice of the bundle service the seeder needs.
type BundleSeeder interface {
	UpsertByKey(ctx context.Context, def *types.BundleDefinition) (*types.BundleDefinition, bool, error)
}

// LoadBuiltinDefinitions parses the embedded catalog. A definition missing
// its key or chart type is a configuration error and aborts the whole load;
// there is no partial catalog.
func LoadBuiltinDefinitions() ([]*types.BundleDefinition, error) {
	var file catalogFile
	if err := yaml.Unmarshal(builtinCatalog, &file); err != nil {
		return nil, fmt.Errorf("%w: parse bundle catalog: %v", types.ErrConfiguration, err)
	}
	if len(file.Bundles) == 0 {
		return nil, fmt.Errorf("%w: bundle catalog is empty", types.ErrConfiguration)
	}
	defs := make([]*types.BundleDefinition, 0, len(file.Bundles))
	seen := make(map[string]bool, len(file.Bundles))
	for i, entry := range file.Bundles {
		key := strings.TrimSpace(entry.Key)
		chartType := strings.TrimSpace(entry.ChartType)
		if key == "" || chartType == "" {
			return nil, fmt.Errorf("%w: bundle catalog entry %d is missing key or chart_type", types.ErrConfiguration, i)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: bundle catalog declares %q twice", types.ErrConfiguration, key)
		}
		seen[key] = true
		version := entry.Version
		if version <= 0 {
			version = 1
		}
		def := &types.BundleDefinition{
			Key:         key,
			ChartType:   chartType,
			Version:     version,
			Name:        entry.Name,
			Description: entry.Description,
		}
		var err error
		if def.DataSchema, err = toJSON(entry.DataSchema); err != nil {
			return nil, fmt.Errorf("%w: bundle %q data_schema: %v", types.ErrConfiguration, key, err)
		}
		if def.ConfigSchema, err = toJSON(entry.ConfigSchema); err != nil {
			return nil, fmt.Errorf("%w: bundle %q config_schema: %v", types.ErrConfiguration, key, err)
		}
		if def.OutputSchema, err = toJSON(entry.OutputSchema); err != nil {
			return nil, fmt.Errorf("%w: bundle %q output_schema: %v", types.ErrConfiguration, key, err)
		}
		if def.Defaults, err = toJSON(entry.Defaults); err != nil {
			return nil, fmt.Errorf("%w: bundle %q defaults: %v", types.ErrConfiguration, key, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Run seeds every built-in definition through the registry upsert. Safe to
// re-run: an identical catalog writes nothing. Any failure halts seeding.
func Run(ctx context.Context, bundles BundleSeeder) error {
	defs, err := LoadBuiltinDefinitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, _, err := bundles.UpsertByKey(ctx, def); err != nil {
			return fmt.Errorf("seed bundle %q: %w", def.Key, err)
		}
	}
	return nil
}

func toJSON(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
