package entities

import "time"

// ActuationState is the last-known physical state of a device.
type ActuationState string

const (
	ActuationOn      ActuationState = "on"
	ActuationOff     ActuationState = "off"
	ActuationUnknown ActuationState = "unknown"
)

// DeviceDescriptor identifies a controllable plug to the actuator
// driver. Address is the device IP for kasa/tapo and the device MAC for
// wyze. The credential fields come from the device registry file and
// are brand-specific: email/password for tapo, an access token and
// device model for wyze. They are never serialized outbound.
type DeviceDescriptor struct {
	Key     string `json:"key" yaml:"key"`
	Name    string `json:"name" yaml:"name"`
	Brand   string `json:"brand" yaml:"brand"`
	Address string `json:"address" yaml:"address"`
	ChildID string `json:"child_id,omitempty" yaml:"child_id,omitempty"`

	Email       string `json:"-" yaml:"email,omitempty"`
	Password    string `json:"-" yaml:"password,omitempty"`
	AccessToken string `json:"-" yaml:"access_token,omitempty"`
	Model       string `json:"-" yaml:"model,omitempty"`
}

// SynthesizeDescriptor builds a minimal descriptor for a device key that
// was never registered. Cycles on unknown keys still have to work.
func SynthesizeDescriptor(key string) DeviceDescriptor {
	return DeviceDescriptor{
		Key:  key,
		Name: key,
	}
}

// Cycle timing defaults applied when a setting is absent or invalid.
const (
	DefaultOnDuration  = 5 * time.Second
	DefaultOffInterval = 10 * time.Second
)

// CycleSettings configures one on/off pulse sequence for a device.
// CycleCount zero means unbounded.
type CycleSettings struct {
	OnDuration  time.Duration `json:"on_duration"`
	OffInterval time.Duration `json:"off_interval"`
	CycleCount  int           `json:"cycle_count"`
}

// Normalize clamps the settings to usable values.
func (c CycleSettings) Normalize() CycleSettings {
	if c.OnDuration <= 0 {
		c.OnDuration = DefaultOnDuration
	}
	if c.OffInterval <= 0 {
		c.OffInterval = DefaultOffInterval
	}
	if c.CycleCount < 0 {
		c.CycleCount = 0
	}
	return c
}

// Infinite reports whether the cycle runs until explicitly stopped.
func (c CycleSettings) Infinite() bool {
	return c.CycleCount == 0
}

// CycleReport describes how a cycle ended.
type CycleReport struct {
	DeviceKey string `json:"device_key"`
	Cycles    int    `json:"cycles"`
	Completed bool   `json:"completed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}
