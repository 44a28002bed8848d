// Package character loads persona definitions from YAML files.
package character

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// Default is the built-in character used when no file is configured.
func Default() *entities.Character {
	return &entities.Character{
		Name:     "Aria",
		Persona:  "A warm, attentive companion who keeps the scene moving and notices every change in [Player].",
		Scenario: "A long, private evening together.",
		Welcome:  "Greet [Player] and settle into the scene.",
	}
}

// Load reads a character file. A missing file falls back to the default
// character; a malformed one is an error.
func Load(path string) (*entities.Character, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read character file: %w", err)
	}

	var char entities.Character
	if err := yaml.Unmarshal(data, &char); err != nil {
		return nil, fmt.Errorf("parse character file: %w", err)
	}
	if char.Name == "" {
		return nil, fmt.Errorf("character file %s: name is required", path)
	}
	return &char, nil
}

// LoadDevices reads the optional device registry file.
func LoadDevices(path string) ([]entities.DeviceDescriptor, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var wrapper struct {
		Devices []entities.DeviceDescriptor `yaml:"devices"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	for _, d := range wrapper.Devices {
		if d.Key == "" {
			return nil, fmt.Errorf("devices file %s: every device needs a key", path)
		}
	}
	return wrapper.Devices, nil
}
