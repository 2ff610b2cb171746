package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// InstrumentSpec carries the execution parameters of one tradable asset.
// PointValue is the account-currency value of a 1-point move for 1 standard
// lot in the asset's quote currency; zero means "not configured" and vetoes
// sizing for that asset.
type InstrumentSpec struct {
	PointValue      float64 `mapstructure:"point_value"`
	Precision       int     `mapstructure:"precision"`
	MinStopDistance float64 `mapstructure:"min_stop_distance"`
}

// SpecBook resolves per-asset specs with an explicit default fallback.
type SpecBook struct {
	def   InstrumentSpec
	specs map[string]InstrumentSpec
}

// LoadSpecBook reads configs/instruments.yaml:
//
//	default:
//	  precision: 5
//	  min_stop_distance: 0.0005
//	instruments:
//	  EUR/USD: {point_value: 100000, precision: 5, min_stop_distance: 0.0005}
func LoadSpecBook() (*SpecBook, error) {
	v := viper.New()
	v.SetConfigName("instruments")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read instruments config")
	}

	var def InstrumentSpec
	if err := v.UnmarshalKey("default", &def); err != nil {
		return nil, errors.Wrap(err, "unmarshal default instrument spec")
	}
	specs := map[string]InstrumentSpec{}
	if err := v.UnmarshalKey("instruments", &specs); err != nil {
		return nil, errors.Wrap(err, "unmarshal instrument specs")
	}

	return NewSpecBook(def, specs), nil
}

func NewSpecBook(def InstrumentSpec, specs map[string]InstrumentSpec) *SpecBook {
	// viper lower-cases map keys, so lookups are case-folded
	normalized := make(map[string]InstrumentSpec, len(specs))
	for asset, s := range specs {
		normalized[strings.ToUpper(asset)] = s
	}
	return &SpecBook{def: def, specs: normalized}
}

// Spec returns the asset's spec, or the default entry for unknown assets.
func (b *SpecBook) Spec(asset string) InstrumentSpec {
	if s, ok := b.specs[strings.ToUpper(asset)]; ok {
		return s
	}
	return b.def
}

func (b *SpecBook) Precision(asset string) int { return b.Spec(asset).Precision }

func (b *SpecBook) MinStopDistance(asset string) float64 { return b.Spec(asset).MinStopDistance }
