// Package actuator provides plug drivers behind the uniform actuator
// port: an exec bridge to the per-brand helper scripts and an in-memory
// driver for rigs without hardware and for tests.
package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// Bridge shells out to the per-brand control helpers (kasa, wyze,
// tapo). Every helper prints a single JSON object on stdout; the
// argument shape differs per brand and is assembled in argv.
type Bridge struct {
	interpreter string
	scripts     map[string]string // brand -> helper path
	logger      *zap.Logger
}

// NewBridge creates an exec-based actuator. scripts maps a brand name to
// its helper script path.
func NewBridge(interpreter string, scripts map[string]string, logger *zap.Logger) *Bridge {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &Bridge{
		interpreter: interpreter,
		scripts:     scripts,
		logger:      logger,
	}
}

// argv assembles the helper invocation for one brand. The shapes match
// the helpers themselves: kasa takes `<command> <ip> [child_id]`, tapo
// takes `<command> <ip> <email> <password>`, wyze takes
// `<command> <access_token> <device_mac> [device_model]` with the model
// required for on/off.
func argv(script, command string, d entities.DeviceDescriptor) ([]string, error) {
	if d.Address == "" {
		return nil, fmt.Errorf("device %s has no address", d.Key)
	}

	switch d.Brand {
	case "tapo":
		if d.Email == "" || d.Password == "" {
			return nil, fmt.Errorf("tapo device %s needs email and password", d.Key)
		}
		return []string{script, command, d.Address, d.Email, d.Password}, nil

	case "wyze":
		if d.AccessToken == "" {
			return nil, fmt.Errorf("wyze device %s needs an access token", d.Key)
		}
		args := []string{script, command, d.AccessToken, d.Address}
		if command == "on" || command == "off" {
			if d.Model == "" {
				return nil, fmt.Errorf("wyze device %s needs a model for %s", d.Key, command)
			}
			args = append(args, d.Model)
		}
		return args, nil

	default:
		args := []string{script, command, d.Address}
		if d.ChildID != "" {
			args = append(args, d.ChildID)
		}
		return args, nil
	}
}

type bridgeResult struct {
	Error   string `json:"error"`
	State   string `json:"state"`
	Success bool   `json:"success"`
}

// TurnOn implements repositories.Actuator.
func (b *Bridge) TurnOn(ctx context.Context, descriptor entities.DeviceDescriptor) error {
	_, err := b.run(ctx, descriptor, "on")
	return err
}

// TurnOff implements repositories.Actuator.
func (b *Bridge) TurnOff(ctx context.Context, descriptor entities.DeviceDescriptor) error {
	_, err := b.run(ctx, descriptor, "off")
	return err
}

// GetState implements repositories.Actuator.
func (b *Bridge) GetState(ctx context.Context, descriptor entities.DeviceDescriptor) (entities.ActuationState, error) {
	result, err := b.run(ctx, descriptor, "state")
	if err != nil {
		return entities.ActuationUnknown, err
	}
	switch result.State {
	case "on":
		return entities.ActuationOn, nil
	case "off":
		return entities.ActuationOff, nil
	default:
		return entities.ActuationUnknown, nil
	}
}

func (b *Bridge) run(ctx context.Context, descriptor entities.DeviceDescriptor, command string) (bridgeResult, error) {
	var result bridgeResult

	script, ok := b.scripts[descriptor.Brand]
	if !ok {
		return result, fmt.Errorf("no helper configured for brand %q (device %s)", descriptor.Brand, descriptor.Key)
	}

	args, err := argv(script, command, descriptor)
	if err != nil {
		return result, err
	}

	out, err := exec.CommandContext(ctx, b.interpreter, args...).Output()
	if err != nil {
		return result, fmt.Errorf("%s helper %s: %w", descriptor.Brand, command, err)
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return result, fmt.Errorf("%s helper %s: bad output: %w", descriptor.Brand, command, err)
	}
	if result.Error != "" {
		return result, fmt.Errorf("%s helper %s: %s", descriptor.Brand, command, result.Error)
	}

	b.logger.Debug("Actuation call completed",
		zap.String("deviceKey", descriptor.Key),
		zap.String("command", command))
	return result, nil
}
