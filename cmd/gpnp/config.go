package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mastercactapus/gpnp/coord"
	"github.com/mastercactapus/gpnp/machine"
	"github.com/mastercactapus/gpnp/machine/gcodedriver"
)

type offsetConfig struct {
	X        float64 `toml:"x"`
	Y        float64 `toml:"y"`
	Z        float64 `toml:"z"`
	Rotation float64 `toml:"rotation"`
}

type mountConfig struct {
	Name    string            `toml:"name"`
	Kind    machine.MountKind `toml:"kind"`
	Units   coord.LengthUnit  `toml:"units"`
	Offsets offsetConfig      `toml:"offsets"`
}

type actuatorConfig struct {
	Name  string `toml:"name"`
	Index int    `toml:"index"`
}

type fileConfig struct {
	Driver    toml.Primitive   `toml:"driver"`
	Mounts    []mountConfig    `toml:"mount"`
	Actuators []actuatorConfig `toml:"actuator"`
}

type config struct {
	Driver    gcodedriver.Config
	Mounts    []machine.HeadMountable
	Actuators []machine.Actuator
}

func loadConfig(path string) (*config, error) {
	if path == "" {
		return parseConfig("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(string(data))
}

// parseConfig decodes a machine config. Without any [[mount]] a single
// nozzle named "N1" is assumed.
func parseConfig(data string) (*config, error) {
	var fc fileConfig
	md, err := toml.Decode(data, &fc)
	if err != nil {
		return nil, err
	}

	var cfg config
	if md.IsDefined("driver") {
		cfg.Driver, err = gcodedriver.DecodeConfig(md, fc.Driver)
		if err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
	} else {
		cfg.Driver = gcodedriver.DefaultConfig()
	}
	err = gcodedriver.CheckUndecoded(md)
	if err != nil {
		return nil, err
	}

	if len(fc.Mounts) == 0 {
		fc.Mounts = []mountConfig{{Name: "N1", Kind: machine.KindNozzle}}
	}
	for _, m := range fc.Mounts {
		if m.Name == "" {
			return nil, errors.New("mount: name is required")
		}
		cfg.Mounts = append(cfg.Mounts, machine.Mount{
			Label:   m.Name,
			Type:    m.Kind,
			Offsets: coord.NewLocation(m.Units, m.Offsets.X, m.Offsets.Y, m.Offsets.Z, m.Offsets.Rotation),
		})
	}
	for _, a := range fc.Actuators {
		if a.Name == "" {
			return nil, errors.New("actuator: name is required")
		}
		cfg.Actuators = append(cfg.Actuators, machine.Output{Label: a.Name, Number: a.Index})
	}

	return &cfg, nil
}
