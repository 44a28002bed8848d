// Package cycle drives physical devices through timed on/off pulse
// sequences. At most one live cycle exists per device key; starting a
// new one supersedes the old one entirely.
package cycle

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
)

// actuationTimeout bounds a single driver call so a wedged plug cannot
// stall the timer chain.
const actuationTimeout = 10 * time.Second

// cycleState is the live state machine for one device key.
type cycleState struct {
	gen        uint64
	descriptor entities.DeviceDescriptor
	settings   entities.CycleSettings
	count      int
	startedAt  time.Time
	timer      *clock.Timer
}

// Scheduler runs per-device cycle state machines on cancellable timers.
// Each key carries a monotonic generation counter, so a superseded
// cycle's stale timer firing is a provable no-op.
type Scheduler struct {
	mu       sync.Mutex
	cycles   map[string]*cycleState
	gens     map[string]uint64
	registry map[string]entities.DeviceDescriptor

	clk       clock.Clock
	actuator  repositories.Actuator
	publisher repositories.Publisher
	flow      repositories.FlowEngine
	session   *entities.SessionState
	logger    *zap.Logger
}

// NewScheduler creates a cycle scheduler.
func NewScheduler(
	clk clock.Clock,
	actuator repositories.Actuator,
	publisher repositories.Publisher,
	flow repositories.FlowEngine,
	session *entities.SessionState,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cycles:    make(map[string]*cycleState),
		gens:      make(map[string]uint64),
		registry:  make(map[string]entities.DeviceDescriptor),
		clk:       clk,
		actuator:  actuator,
		publisher: publisher,
		flow:      flow,
		session:   session,
		logger:    logger,
	}
}

// RegisterDevice stores metadata for a device key.
func (s *Scheduler) RegisterDevice(desc entities.DeviceDescriptor) {
	s.mu.Lock()
	s.registry[desc.Key] = desc
	s.mu.Unlock()
}

// Descriptor returns the registered descriptor for a key, or a minimal
// synthesized one. Cycles on unregistered keys still work.
func (s *Scheduler) Descriptor(key string) entities.DeviceDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if desc, ok := s.registry[key]; ok {
		return desc
	}
	return entities.SynthesizeDescriptor(key)
}

// Devices returns every registered descriptor.
func (s *Scheduler) Devices() []entities.DeviceDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.DeviceDescriptor, 0, len(s.registry))
	for _, d := range s.registry {
		out = append(out, d)
	}
	return out
}

// Active reports whether a live cycle exists for the key.
func (s *Scheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cycles[key]
	return ok
}

// ActiveKeys returns the keys with a live cycle.
func (s *Scheduler) ActiveKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.cycles))
	for k := range s.cycles {
		keys = append(keys, k)
	}
	return keys
}

// StartCycle begins a pulse sequence for the device key. Any existing
// cycle for the key is cancelled first.
func (s *Scheduler) StartCycle(key string, settings entities.CycleSettings) {
	settings = settings.Normalize()

	s.mu.Lock()
	s.gens[key]++
	gen := s.gens[key]
	if old, ok := s.cycles[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.cycles[key] = &cycleState{
		gen:        gen,
		descriptor: s.descriptorLocked(key),
		settings:   settings,
		startedAt:  s.clk.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("Cycle started",
		zap.String("deviceKey", key),
		zap.Duration("onDuration", settings.OnDuration),
		zap.Duration("offInterval", settings.OffInterval),
		zap.Int("cycleCount", settings.CycleCount))

	s.pulseOn(key, gen)
}

func (s *Scheduler) descriptorLocked(key string) entities.DeviceDescriptor {
	if desc, ok := s.registry[key]; ok {
		return desc
	}
	return entities.SynthesizeDescriptor(key)
}

// StopCycle cancels the cycle for the key and forces the device off.
// Safe to call when no cycle is running.
func (s *Scheduler) StopCycle(key string) entities.CycleReport {
	s.mu.Lock()
	s.gens[key]++
	cs, ok := s.cycles[key]
	if ok {
		if cs.timer != nil {
			cs.timer.Stop()
		}
		delete(s.cycles, key)
	}
	desc := s.descriptorLocked(key)
	s.mu.Unlock()

	report := entities.CycleReport{DeviceKey: key, Completed: false}
	if ok {
		report.Cycles = cs.count
		report.ElapsedMS = s.clk.Now().Sub(cs.startedAt).Milliseconds()
	}

	s.forceOff(key, desc)

	if ok {
		s.publisher.Publish(bus.EventCycleComplete, report)
		s.flow.CycleCompleted(report)
	}
	return report
}

// StopAll cancels every live cycle. Returns the stopped keys.
func (s *Scheduler) StopAll() []string {
	keys := s.ActiveKeys()
	for _, key := range keys {
		s.StopCycle(key)
	}
	return keys
}

// pulseOn transitions the key's state machine into On.
func (s *Scheduler) pulseOn(key string, gen uint64) {
	s.mu.Lock()
	cs, ok := s.cycles[key]
	if !ok || cs.gen != gen {
		s.mu.Unlock()
		return
	}
	desc := cs.descriptor
	settings := cs.settings
	count := cs.count
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), actuationTimeout)
	defer cancel()
	if err := s.actuator.TurnOn(ctx, desc); err != nil {
		s.logger.Error("Actuator turn-on failed",
			zap.String("deviceKey", key),
			zap.Error(err))
		s.publisher.Publish(bus.EventError, map[string]any{
			"device_key": key,
			"message":    "failed to turn device on",
		})
	} else {
		s.session.SetDeviceState(key, entities.ActuationOn)
		s.publisher.Publish(bus.EventDeviceOn, map[string]any{"device_key": key})
	}
	s.publisher.Publish(bus.EventCycleOn, map[string]any{
		"device_key": key,
		"cycle":      count + 1,
	})

	s.mu.Lock()
	cs, ok = s.cycles[key]
	if ok && cs.gen == gen {
		cs.timer = s.clk.AfterFunc(settings.OnDuration, func() {
			s.pulseOff(key, gen)
		})
	}
	s.mu.Unlock()
}

// pulseOff transitions the key's state machine into Off, completing the
// cycle when the count bound is reached.
func (s *Scheduler) pulseOff(key string, gen uint64) {
	s.mu.Lock()
	cs, ok := s.cycles[key]
	if !ok || cs.gen != gen {
		s.mu.Unlock()
		return
	}
	cs.count++
	desc := cs.descriptor
	settings := cs.settings
	count := cs.count
	finished := !settings.Infinite() && count >= settings.CycleCount
	var elapsed time.Duration
	if finished {
		delete(s.cycles, key)
		elapsed = s.clk.Now().Sub(cs.startedAt)
	}
	s.mu.Unlock()

	s.forceOff(key, desc)
	s.publisher.Publish(bus.EventCycleOff, map[string]any{
		"device_key": key,
		"cycle":      count,
	})

	if finished {
		report := entities.CycleReport{
			DeviceKey: key,
			Cycles:    count,
			Completed: true,
			ElapsedMS: elapsed.Milliseconds(),
		}
		s.publisher.Publish(bus.EventCycleComplete, report)
		// Synchronous so cascading flow cycles chain without polling.
		s.flow.CycleCompleted(report)
		return
	}

	s.mu.Lock()
	cs, ok = s.cycles[key]
	if ok && cs.gen == gen {
		cs.timer = s.clk.AfterFunc(settings.OffInterval, func() {
			s.pulseOn(key, gen)
		})
	}
	s.mu.Unlock()
}

// forceOff issues the off actuation and records the state. Errors are
// logged and surfaced but never break the caller's path into Idle.
func (s *Scheduler) forceOff(key string, desc entities.DeviceDescriptor) {
	ctx, cancel := context.WithTimeout(context.Background(), actuationTimeout)
	defer cancel()
	if err := s.actuator.TurnOff(ctx, desc); err != nil {
		s.logger.Error("Actuator turn-off failed",
			zap.String("deviceKey", key),
			zap.Error(err))
		s.publisher.Publish(bus.EventError, map[string]any{
			"device_key": key,
			"message":    "failed to turn device off",
		})
		return
	}
	s.session.SetDeviceState(key, entities.ActuationOff)
	s.publisher.Publish(bus.EventDeviceOff, map[string]any{"device_key": key})
}
