// Package config loads planner settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rrt-planner/rrt"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	World   rrt.Bounds    `yaml:"world"`
	Planner PlannerConfig `yaml:"planner"`
	Frames  FrameConfig   `yaml:"frames"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PlannerConfig struct {
	StepSize      float64 `yaml:"step_size"`
	GoalThreshold float64 `yaml:"goal_threshold"`
	MaxIterations int     `yaml:"max_iterations"`
	Seed          int64   `yaml:"seed"` // 0 seeds from the clock
}

type FrameConfig struct {
	Rate int `yaml:"rate"` // frames per second
}

// Interval is the time between two frame ticks.
func (f FrameConfig) Interval() time.Duration {
	return time.Second / time.Duration(f.Rate)
}

type RenderConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	EdgeWidth    float64 `yaml:"edge_width"`
	PathWidth    float64 `yaml:"path_width"`
	MarkerRadius float64 `yaml:"marker_radius"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default mirrors the classic demo: a 400x400 world, step 10, threshold 10.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		World:  rrt.Bounds{MinX: 0, MaxX: 400, MinY: 0, MaxY: 400},
		Planner: PlannerConfig{
			StepSize:      10,
			GoalThreshold: 10,
			MaxIterations: 20000,
		},
		Frames: FrameConfig{Rate: 60},
		Render: RenderConfig{
			Width:        400,
			Height:       400,
			EdgeWidth:    1,
			PathWidth:    2,
			MarkerRadius: 5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadYAML decodes a config from r on top of the defaults.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads a YAML config file.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func (c Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("%w: world: %v", ErrInvalid, err)
	}
	if !(c.Planner.StepSize > 0) {
		return fmt.Errorf("%w: planner.step_size must be positive", ErrInvalid)
	}
	if !(c.Planner.GoalThreshold >= 0) {
		return fmt.Errorf("%w: planner.goal_threshold must be non-negative", ErrInvalid)
	}
	if c.Planner.MaxIterations < 0 {
		return fmt.Errorf("%w: planner.max_iterations must be non-negative", ErrInvalid)
	}
	if c.Frames.Rate <= 0 {
		return fmt.Errorf("%w: frames.rate must be positive", ErrInvalid)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("%w: render size must be positive", ErrInvalid)
	}
	return nil
}
