// Package config loads the YAML configuration of the machine simulator.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/oriumgames/mecs/boiler"
	"github.com/oriumgames/mecs/crafting"
	"github.com/oriumgames/mecs/fusion"
	"github.com/oriumgames/mecs/multiblock"
	"gopkg.in/yaml.v3"
)

// Config is the full simulator configuration.
type Config struct {
	TickRate         time.Duration `yaml:"tick_rate"`
	SaveInterval     time.Duration `yaml:"save_interval"`
	ValidateInterval time.Duration `yaml:"validate_interval"`
	SyncRadius       float64       `yaml:"sync_radius"`

	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
	Monitor Monitor `yaml:"monitor"`

	// Boilers overrides the stock tiers by name ("bronze", "steel").
	Boilers map[string]BoilerTier `yaml:"boilers"`
	// Fuels maps item names to burn times in game ticks.
	Fuels map[string]int `yaml:"fuels"`

	Fusion      Fusion      `yaml:"fusion"`
	Hatches     Hatches     `yaml:"hatches"`
	WaterSource WaterSource `yaml:"water_source"`
	Recipes     []Recipe    `yaml:"recipes"`
}

type Storage struct {
	// Path of the LevelDB directory. Ignored when Memory is set.
	Path   string `yaml:"path"`
	Memory bool   `yaml:"memory"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Monitor struct {
	// Addr is the listen address of the websocket monitor. Empty disables it.
	Addr string `yaml:"addr"`
}

type BoilerTier struct {
	TemperatureMax int   `yaml:"temperature_max"`
	BurnDivisor    int   `yaml:"burn_divisor"`
	BucketCapacity int64 `yaml:"bucket_capacity"`
}

type Fusion struct {
	BaseRecipeEnergy int64 `yaml:"base_recipe_energy"`
	MaxRecipeEnergy  int64 `yaml:"max_recipe_energy"`
}

type Hatches struct {
	EnergyCapacity int64 `yaml:"energy_capacity"`
	EnergyFeed     int64 `yaml:"energy_feed"`
	FluidCapacity  int64 `yaml:"fluid_capacity"`
}

type WaterSource struct {
	Rate     int64 `yaml:"rate"`
	Capacity int64 `yaml:"capacity"`
}

type Recipe struct {
	ID            string `yaml:"id"`
	Type          string `yaml:"type"`
	EnergyPerTick int64  `yaml:"energy_per_tick"`
	Duration      int    `yaml:"duration"`
}

var tierNames = map[string]boiler.Tier{
	"bronze": boiler.Bronze,
	"steel":  boiler.Steel,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		TickRate:         50 * time.Millisecond,
		SaveInterval:     30 * time.Second,
		ValidateInterval: time.Second,
		SyncRadius:       64,
		Storage:          Storage{Path: "machines"},
		Log:              Log{Level: "info"},
		Fusion: Fusion{
			BaseRecipeEnergy: fusion.DefaultParams.BaseRecipeEnergy,
			MaxRecipeEnergy:  fusion.DefaultParams.MaxRecipeEnergy,
		},
		Hatches: Hatches{
			EnergyCapacity: 4_000_000,
			EnergyFeed:     32_000,
			FluidCapacity:  16 * 81000,
		},
		WaterSource: WaterSource{Rate: 81000, Capacity: 16 * 81000},
		Recipes: []Recipe{
			{ID: "helium_plasma", Type: fusion.RecipeType, EnergyPerTick: 100_000, Duration: 200},
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Decode reads YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.TickRate <= 0:
		return fmt.Errorf("tick_rate must be positive, got %s", c.TickRate)
	case c.SaveInterval < 0:
		return fmt.Errorf("save_interval must not be negative, got %s", c.SaveInterval)
	case c.ValidateInterval < 0:
		return fmt.Errorf("validate_interval must not be negative, got %s", c.ValidateInterval)
	case c.SyncRadius < 0:
		return fmt.Errorf("sync_radius must not be negative, got %v", c.SyncRadius)
	case !c.Storage.Memory && c.Storage.Path == "":
		return errors.New("storage.path is required unless storage.memory is set")
	case c.Fusion.BaseRecipeEnergy < 0 || c.Fusion.MaxRecipeEnergy <= 0:
		return errors.New("fusion energy limits must be positive")
	case c.Fusion.MaxRecipeEnergy > math.MaxInt32:
		return fmt.Errorf("fusion.max_recipe_energy above %d", math.MaxInt32)
	case c.Hatches.EnergyCapacity <= 0 || c.Hatches.FluidCapacity <= 0:
		return errors.New("hatch capacities must be positive")
	case c.Hatches.EnergyFeed < 0 || c.WaterSource.Rate < 0:
		return errors.New("feed rates must not be negative")
	case c.WaterSource.Capacity <= 0:
		return errors.New("water_source.capacity must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	for name, t := range c.Boilers {
		if _, ok := tierNames[name]; !ok {
			return fmt.Errorf("unknown boiler tier %q", name)
		}
		if t.TemperatureMax <= 0 || t.BurnDivisor <= 0 || t.BucketCapacity <= 0 {
			return fmt.Errorf("boiler tier %q: values must be positive", name)
		}
	}
	for item, ticks := range c.Fuels {
		if ticks < 0 {
			return fmt.Errorf("fuel %q: negative burn time", item)
		}
	}
	seen := make(map[string]struct{}, len(c.Recipes))
	for _, r := range c.Recipes {
		if r.ID == "" || r.Type == "" {
			return errors.New("recipes need an id and a type")
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate recipe %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.EnergyPerTick < 0 || r.Duration <= 0 {
			return fmt.Errorf("recipe %q: invalid energy or duration", r.ID)
		}
	}
	return nil
}

// Tiers returns the stock boiler tiers with the configured overrides applied.
func (c *Config) Tiers() map[boiler.Tier]boiler.TierSpec {
	tiers := make(map[boiler.Tier]boiler.TierSpec, len(boiler.DefaultTiers))
	for tier, spec := range boiler.DefaultTiers {
		tiers[tier] = spec
	}
	for name, t := range c.Boilers {
		tier := tierNames[name]
		spec := tiers[tier]
		spec.TemperatureMax = t.TemperatureMax
		spec.BurnDivisor = t.BurnDivisor
		spec.BucketCapacity = t.BucketCapacity
		tiers[tier] = spec
	}
	return tiers
}

func (c *Config) FuelTable() *boiler.FuelTable {
	return boiler.NewFuelTable(c.Fuels)
}

func (c *Config) FusionParams() fusion.Params {
	return fusion.Params{
		RecipeType:       fusion.RecipeType,
		BaseRecipeEnergy: c.Fusion.BaseRecipeEnergy,
		MaxRecipeEnergy:  c.Fusion.MaxRecipeEnergy,
	}
}

func (c *Config) HatchConfig() multiblock.HatchConfig {
	return multiblock.HatchConfig{
		EnergyCapacity: c.Hatches.EnergyCapacity,
		EnergyFeed:     c.Hatches.EnergyFeed,
		FluidCapacity:  c.Hatches.FluidCapacity,
	}
}

// RecipeRegistry returns a registry holding the configured recipes.
func (c *Config) RecipeRegistry() *crafting.Registry {
	reg := crafting.NewRegistry()
	for _, r := range c.Recipes {
		reg.Add(crafting.Recipe{
			ID:            r.ID,
			Type:          r.Type,
			EnergyPerTick: r.EnergyPerTick,
			Duration:      r.Duration,
		})
	}
	return reg
}
