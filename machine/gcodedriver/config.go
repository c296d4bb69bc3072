package gcodedriver

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/gcode"
)

// Commands are the command templates for each driver operation. Templates
// may span several lines; an empty template sends nothing.
type Commands struct {
	Connect        string `toml:"connect"`
	Enable         string `toml:"enable"`
	Disable        string `toml:"disable"`
	Home           string `toml:"home"`
	MoveTo         string `toml:"move_to"`
	Pick           string `toml:"pick"`
	Place          string `toml:"place"`
	ActuateBoolean string `toml:"actuate_boolean"`
	ActuateDouble  string `toml:"actuate_double"`
	Sync           string `toml:"sync"`
}

func (c Commands) each(fn func(name, tmpl string) error) error {
	for _, cmd := range []struct{ name, tmpl string }{
		{"connect", c.Connect},
		{"enable", c.Enable},
		{"disable", c.Disable},
		{"home", c.Home},
		{"move_to", c.MoveTo},
		{"pick", c.Pick},
		{"place", c.Place},
		{"actuate_boolean", c.ActuateBoolean},
		{"actuate_double", c.ActuateDouble},
		{"sync", c.Sync},
	} {
		err := fn(cmd.name, cmd.tmpl)
		if err != nil {
			return err
		}
	}
	return nil
}

// Config configures a Driver and, through Secondaries, the drivers
// chained behind it.
type Config struct {
	Units       coord.LengthUnit `toml:"units"`
	MaxFeedRate float64          `toml:"max_feed_rate"`

	// CommandTimeout bounds each command line. A negative value waits forever.
	CommandTimeout time.Duration `toml:"command_timeout"`

	// ConfirmRegex must match a whole response line for it to confirm
	// the pending command.
	ConfirmRegex string `toml:"command_confirm_regex"`

	// SyncRegex must match a whole response line to the sync command
	// for the connection to be considered ready.
	SyncRegex string `toml:"sync_regex"`

	Commands  Commands        `toml:"commands"`
	Transport TransportConfig `toml:"transport"`

	// Debug logs every line sent and received.
	Debug bool `toml:"debug"`

	Secondaries []Config    `toml:"-"`
	Logger      *log.Logger `toml:"-"`

	confirmRx *regexp.Regexp
	syncRx    *regexp.Regexp
}

// DefaultConfig returns settings suitable for Marlin based controllers.
func DefaultConfig() Config {
	return Config{
		Units:          coord.Millimeters,
		MaxFeedRate:    1000,
		CommandTimeout: 5 * time.Second,
		ConfirmRegex:   "^ok.*",
		SyncRegex:      ".*X:.*Y:.*",
		Commands: Commands{
			Connect:        "G21\nG90\nM82",
			Enable:         "M810",
			Disable:        "M84\nM811",
			Home:           "M84\nG4P500\nG28 X0 Y0\nG92 X0 Y0 Z0 E0",
			MoveTo:         "G0{X:X%.4f}{Y:Y%.4f}{Z:Z%.4f}{Rotation:E%.4f}F{FeedRate:%.0f}\nM400",
			Pick:           "M3",
			Place:          "M5",
			ActuateBoolean: "G4S1",
			ActuateDouble:  "G4S1",
			Sync:           "M114",
		},
		Transport: TransportConfig{
			Type: "serial",
			Baud: 115200,
		},
	}
}

// compileLine compiles expr so that it must match a whole line.
func compileLine(expr string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + expr + ")$")
}

// Validate compiles the response patterns and checks every command template.
func (c *Config) Validate() error {
	if !c.Units.IsValid() {
		return fmt.Errorf("%w: units: %v is not a known unit", ErrConfig, c.Units)
	}
	if c.MaxFeedRate <= 0 {
		return fmt.Errorf("%w: max_feed_rate must be positive", ErrConfig)
	}
	if c.CommandTimeout == 0 {
		return fmt.Errorf("%w: command_timeout must not be zero", ErrConfig)
	}
	if c.Commands.Sync == "" {
		return fmt.Errorf("%w: commands.sync is required", ErrConfig)
	}

	var err error
	c.confirmRx, err = compileLine(c.ConfirmRegex)
	if err != nil {
		return fmt.Errorf("%w: command_confirm_regex: %v", ErrConfig, err)
	}
	c.syncRx, err = compileLine(c.SyncRegex)
	if err != nil {
		return fmt.Errorf("%w: sync_regex: %v", ErrConfig, err)
	}

	return c.Commands.each(func(name, tmpl string) error {
		err := gcode.ValidateTemplate(tmpl)
		if err != nil {
			return fmt.Errorf("%w: commands.%s: %w", ErrConfig, name, err)
		}
		return nil
	})
}

type fileConfig struct {
	Config
	Secondary []toml.Primitive `toml:"secondary"`
}

func (f fileConfig) finish(md toml.MetaData) (Config, error) {
	for i, p := range f.Secondary {
		sc, err := DecodeConfig(md, p)
		if err != nil {
			return Config{}, fmt.Errorf("secondary %d: %w", i, err)
		}
		f.Config.Secondaries = append(f.Config.Secondaries, sc)
	}
	return f.Config, nil
}

// DecodeConfig decodes a driver table, starting from DefaultConfig. Each
// [[...secondary]] table is decoded the same way, in order.
//
// Keys are only known to be unused once the whole document has been
// decoded, so callers embedding a driver table should finish with
// CheckUndecoded.
func DecodeConfig(md toml.MetaData, prim toml.Primitive) (Config, error) {
	f := fileConfig{Config: DefaultConfig()}
	err := md.PrimitiveDecode(prim, &f)
	if err != nil {
		return Config{}, err
	}
	return f.finish(md)
}

// ParseConfig decodes a standalone driver config document.
func ParseConfig(data string) (Config, error) {
	f := fileConfig{Config: DefaultConfig()}
	md, err := toml.Decode(data, &f)
	if err != nil {
		return Config{}, err
	}
	cfg, err := f.finish(md)
	if err != nil {
		return Config{}, err
	}
	err = CheckUndecoded(md)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CheckUndecoded fails if md holds keys that nothing decoded, which is
// usually a misspelled setting or one placed in the wrong table.
func CheckUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys: %s", ErrConfig, strings.Join(names, ", "))
}
