//go:build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigProperties checks validation boundaries over random inputs.
func TestConfigProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("port accepted iff in range", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			SetDefaults(v)
			v.Set("server.port", port)
			_, err := LoadFrom(v)
			valid := port >= 0 && port <= 65535
			return (err == nil) == valid
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("workers accepted iff non-negative", prop.ForAll(
		func(workers int) bool {
			v := viper.New()
			SetDefaults(v)
			v.Set("precompile.workers", workers)
			_, err := LoadFrom(v)
			return (err == nil) == (workers >= 0)
		},
		gen.IntRange(-64, 64),
	))

	properties.Property("views dir with a separator is rejected", prop.ForAll(
		func(a, b string) bool {
			v := viper.New()
			SetDefaults(v)
			v.Set("source.views_dir", a+"/"+b)
			_, err := LoadFrom(v)
			return err != nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
