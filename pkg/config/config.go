package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Level struct {
	Level    uint8   `yaml:"level"`
	TileSize float64 `yaml:"tile_size"`
}

type Mjolnir struct {
	TileDir     string  `yaml:"tile_dir"`
	Concurrency int     `yaml:"concurrency"`
	Levels      []Level `yaml:"levels"`
}

type TagTransform struct {
	NodeScript   string `yaml:"node_script"`
	NodeFunction string `yaml:"node_function"`
	WayScript    string `yaml:"way_script"`
	WayFunction  string `yaml:"way_function"`
}

type Config struct {
	Mjolnir      Mjolnir      `yaml:"mjolnir"`
	TagTransform TagTransform `yaml:"tagtransform"`
}

// Default mirrors the hierarchy the tile consumer expects: the most
// detailed level is the last entry and is the only one this builder emits.
func Default() *Config {
	return &Config{
		Mjolnir: Mjolnir{
			TileDir: "./tiles",
			Levels: []Level{
				{Level: 0, TileSize: 4.0},
				{Level: 1, TileSize: 1.0},
				{Level: 2, TileSize: 0.25},
			},
		},
	}
}

func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if len(cfg.Mjolnir.Levels) == 0 {
		return nil, errors.Errorf("config %s has no hierarchy levels", path)
	}
	return cfg, nil
}

// LocalLevel is the most detailed hierarchy level, the only one built here.
func (c *Config) LocalLevel() Level {
	return c.Mjolnir.Levels[len(c.Mjolnir.Levels)-1]
}
