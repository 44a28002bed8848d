package actuator

import (
	"context"
	"sync"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// Memory is an in-memory actuator. It is the default driver when no
// hardware bridge is configured and doubles as the test double; it
// records every call in order.
type Memory struct {
	mu     sync.Mutex
	states map[string]entities.ActuationState
	calls  []Call
}

// Call records one actuation for inspection.
type Call struct {
	DeviceKey string
	Op        string // "on" or "off"
}

// NewMemory creates an in-memory actuator.
func NewMemory() *Memory {
	return &Memory{states: make(map[string]entities.ActuationState)}
}

// TurnOn implements repositories.Actuator.
func (m *Memory) TurnOn(ctx context.Context, descriptor entities.DeviceDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[descriptor.Key] = entities.ActuationOn
	m.calls = append(m.calls, Call{DeviceKey: descriptor.Key, Op: "on"})
	return nil
}

// TurnOff implements repositories.Actuator.
func (m *Memory) TurnOff(ctx context.Context, descriptor entities.DeviceDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[descriptor.Key] = entities.ActuationOff
	m.calls = append(m.calls, Call{DeviceKey: descriptor.Key, Op: "off"})
	return nil
}

// GetState implements repositories.Actuator.
func (m *Memory) GetState(ctx context.Context, descriptor entities.DeviceDescriptor) (entities.ActuationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[descriptor.Key]; ok {
		return st, nil
	}
	return entities.ActuationUnknown, nil
}

// Calls returns a copy of the recorded call sequence.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded ops for one device key, in order.
func (m *Memory) CallsFor(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.DeviceKey == key {
			out = append(out, c.Op)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
