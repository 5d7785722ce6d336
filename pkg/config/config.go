// Package config implements the match configuration surface: the engine
// list, their options, the two time controls, adjudication thresholds, the
// openings path, and pool/tournament sizing. It is decoded from YAML via
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sparkchess/clash/pkg/clock"
	"github.com/seekerror/stdlib/pkg/lang"
)

// EngineSpec describes one engine under test.
type EngineSpec struct {
	Label   string         `yaml:"name"`
	Path    string         `yaml:"file"`
	Debug   bool           `yaml:"debug"`
	Options map[string]any `yaml:"options"`
}

// TimeControl is the YAML-decodable form of clock.TimeControl: durations
// are expressed in seconds, the natural unit for a human-edited config file.
type TimeControl struct {
	Depth     *int     `yaml:"depth,omitempty"`
	Nodes     *int     `yaml:"nodes,omitempty"`
	MoveTime  *float64 `yaml:"movetime,omitempty"`
	Time      *float64 `yaml:"time,omitempty"`
	Inc       *float64 `yaml:"inc,omitempty"`
	MovesToGo *int     `yaml:"movestogo,omitempty"`
}

// ToClock converts to the internal representation used by pkg/clock.
func (t TimeControl) ToClock() clock.TimeControl {
	return clock.TimeControl{
		Depth:     optInt(t.Depth),
		Nodes:     optInt(t.Nodes),
		MoveTime:  optSeconds(t.MoveTime),
		Time:      optSeconds(t.Time),
		Inc:       optSeconds(t.Inc),
		MovesToGo: optInt(t.MovesToGo),
	}
}

// Validate enforces "at least one of these must restrict the search".
func (t TimeControl) Validate() error {
	if t.Depth == nil && t.Nodes == nil && t.MoveTime == nil && t.Time == nil {
		return fmt.Errorf("time control must set at least one of depth, nodes, movetime, time")
	}
	return nil
}

func optInt(v *int) lang.Optional[int] {
	if v == nil {
		return lang.Optional[int]{}
	}
	return lang.Some(*v)
}

func optSeconds(v *float64) lang.Optional[time.Duration] {
	if v == nil {
		return lang.Optional[time.Duration]{}
	}
	return lang.Some(time.Duration(*v * float64(time.Second)))
}

// Draw holds the draw-adjudication thresholds.
type Draw struct {
	MoveNumber int `yaml:"movenumber"`
	MoveCount  int `yaml:"movecount"`
	Score      int `yaml:"score"`
}

// Resign holds the resign-adjudication thresholds.
type Resign struct {
	MoveCount int `yaml:"movecount"`
	Score     int `yaml:"score"`
}

// Tournament mode.
const (
	Gauntlet   = "gauntlet"
	RoundRobin = "round-robin"
)

// Config is the full configuration surface.
type Config struct {
	Engines        []EngineSpec  `yaml:"engines"`
	TimeControls   []TimeControl `yaml:"timecontrols"`
	Draw           Draw          `yaml:"draw"`
	Resign         Resign        `yaml:"resign"`
	Openings       string        `yaml:"openings"`
	BookDepth      *int          `yaml:"bookdepth,omitempty"`
	PgnOut         *string       `yaml:"pgnout,omitempty"`
	Chess960       bool          `yaml:"chess960"`
	Games          int           `yaml:"games"`
	Concurrency    int           `yaml:"concurrency"`
	RatingInterval int           `yaml:"ratinginterval"`
	Tournament     string        `yaml:"tournament"`
	Tablebase      *string       `yaml:"tablebase,omitempty"`
}

// Load reads and decodes a YAML match configuration and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %v: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %v: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return c, nil
}

// Validate checks the invariants required before any engine is spawned.
func (c Config) Validate() error {
	if len(c.Engines) < 2 {
		return fmt.Errorf("need at least 2 engines, got %v", len(c.Engines))
	}
	if len(c.TimeControls) != 2 {
		return fmt.Errorf("need exactly 2 time controls, got %v", len(c.TimeControls))
	}
	for i, tc := range c.TimeControls {
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("time control %v: %w", i, err)
		}
	}
	if c.Games <= 0 {
		return fmt.Errorf("games must be positive, got %v", c.Games)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %v", c.Concurrency)
	}
	if c.RatingInterval <= 0 {
		return fmt.Errorf("ratinginterval must be positive, got %v", c.RatingInterval)
	}
	switch c.Tournament {
	case Gauntlet, RoundRobin:
	default:
		return fmt.Errorf("tournament must be %q or %q, got %q", Gauntlet, RoundRobin, c.Tournament)
	}
	return nil
}
