// Package munipanel assembles the Idaho municipal panel: it loads the
// financial, employment, geographic, CPI and column-description sources,
// harmonizes their keys, merges them onto the financial table, converts
// nominal to real dollars and derives the normalized features the regression
// consumes. Build is the entry point; Config enumerates every external input
// so nothing hides in package state.
package munipanel

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/idahopolicy/munipanel/clean"
	"github.com/idahopolicy/munipanel/load"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates key segments: MUNIPANEL_FINANCIAL__PATH overrides financial.path.
const EnvPrefix = "MUNIPANEL_"

type GeoConfig struct {
	Path   string `koanf:"path"`
	Admin1 string `koanf:"admin1"`
}

// ReferenceConfig is the period all currency columns are expressed in after
// inflation adjustment. Month 0 means the annual average.
type ReferenceConfig struct {
	Year  int `koanf:"year"`
	Month int `koanf:"month"`
}

// SubsetConfig drives Abbreviated: the best-quality slice of the panel.
type SubsetConfig struct {
	Years  []int    `koanf:"years"`
	Cities []string `koanf:"cities"`
}

type Config struct {
	Financial  load.FinancialConfig  `koanf:"financial"`
	Employment load.EmploymentConfig `koanf:"employment"`
	GeoNames   GeoConfig             `koanf:"geonames"`
	CPI        load.CPIConfig        `koanf:"cpi"`
	Columns    string                `koanf:"columns"` // description table path

	Reference  ReferenceConfig      `koanf:"reference"`
	Thresholds clean.SizeThresholds `koanf:"thresholds"`
	Aliases    map[string]string    `koanf:"aliases"`

	// Currency lists the columns RealDollars rescales; empty means the
	// normalization columns plus the totals.
	Currency []string       `koanf:"currency"`
	NormSpec clean.NormSpec `koanf:"norm_spec"`
	Subset   SubsetConfig   `koanf:"subset"`

	Norm bool   `koanf:"norm"` // derive normalized features
	Out  string `koanf:"out"`  // write the finished panel here; "" skips
}

// DefaultConfig carries the source project's constants: header offsets of
// the published workbooks, October 2019 reference dollars, Census size
// cutoffs and the 59-city / census-year quality subset pattern.
func DefaultConfig() *Config {
	return &Config{
		Financial: load.FinancialConfig{
			Path:      "Idaho_Municipal_Database.xlsx",
			Sheet:     "Sheet1",
			HeaderRow: 1,
		},
		Employment: load.EmploymentConfig{
			Glob:       "employment/l*xlsx",
			Sheet:      "Sheet1",
			HeaderRows: []int{2, 3, 4},
			StateFIPS:  16,
		},
		GeoNames: GeoConfig{
			Path:   "gps_data.txt",
			Admin1: "ID",
		},
		CPI: load.CPIConfig{
			Path:      "bls_cpi_stats.xlsx",
			Sheet:     "Sheet1",
			HeaderRow: 11,
		},
		Columns:   "col_only.csv",
		Reference: ReferenceConfig{Year: 2019, Month: 10},
		Thresholds: clean.SizeThresholds{
			Rural: 2500,
			Urban: 50000,
		},
		NormSpec: clean.NormSpec{
			TotalExp:   "Total_Expenditure",
			TotalRev:   "Total_Revenue",
			Population: "Population",
		},
		Subset: SubsetConfig{Years: []int{1997, 2002, 2007, 2012}},
		Norm:   true,
	}
}

// LoadConfig resolves the configuration: struct defaults, then the yaml file
// at path (optional when path is ""), then MUNIPANEL_ environment overrides.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if e := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); e != nil {
		return nil, fmt.Errorf("config defaults: %w", e)
	}

	if path != "" {
		if _, e := os.Stat(path); e != nil {
			return nil, fmt.Errorf("config file %s: %w", path, e)
		}

		if e := k.Load(file.Provider(path), yaml.Parser()); e != nil {
			return nil, fmt.Errorf("config file %s: %w", path, e)
		}
	}

	e := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if e != nil {
		return nil, fmt.Errorf("config env: %w", e)
	}

	cfg := &Config{}
	if e = k.Unmarshal("", cfg); e != nil {
		return nil, fmt.Errorf("config unmarshal: %w", e)
	}

	return cfg, nil
}

// currencyCols is the effective RealDollars column list.
func (cfg *Config) currencyCols() []string {
	if len(cfg.Currency) > 0 {
		return cfg.Currency
	}

	var cols []string
	seen := make(map[string]bool)
	for _, c := range [][]string{
		cfg.NormSpec.ExpCols,
		cfg.NormSpec.RevCols,
		{cfg.NormSpec.TotalExp, cfg.NormSpec.TotalRev, "Total_Debt"},
	} {
		for _, name := range c {
			if name == "" || seen[name] {
				continue
			}

			seen[name] = true
			cols = append(cols, name)
		}
	}

	return cols
}
