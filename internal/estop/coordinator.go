// Package estop brings the whole rig to a safe state: every device off,
// every generation request aborted, every observer told and
// disconnected. The coordinator is the single funnel for explicit stop
// requests, uncaught faults and termination signals.
package estop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
)

// deviceOffTimeout bounds each force-off call so one wedged plug cannot
// hold up the rest of the shutdown.
const deviceOffTimeout = 5 * time.Second

// CycleStopper is the slice of the cycle scheduler the coordinator uses.
type CycleStopper interface {
	StopAll() []string
	Devices() []entities.DeviceDescriptor
	Descriptor(key string) entities.DeviceDescriptor
}

// Observers is the slice of the broadcast hub the coordinator uses.
type Observers interface {
	Publish(eventType string, data any)
	CloseAll()
}

// Report describes what one emergency stop actually did.
type Report struct {
	AlreadyTriggered bool     `json:"already_triggered"`
	Reason           string   `json:"reason"`
	CyclesStopped    []string `json:"cycles_stopped"`
	DevicesOff       []string `json:"devices_off"`
	AbortedRequests  int      `json:"aborted_requests"`
	Errors           []string `json:"errors,omitempty"`
}

// Coordinator executes the emergency stop exactly once. Repeat
// invocations are successful no-ops.
type Coordinator struct {
	mu        sync.Mutex
	triggered bool

	cycles    CycleStopper
	actuator  repositories.Actuator
	backend   repositories.Backend
	observers Observers
	session   *entities.SessionState
	snapshots repositories.SnapshotStore
	logger    *zap.Logger
}

// NewCoordinator creates the emergency-stop coordinator.
func NewCoordinator(
	cycles CycleStopper,
	actuator repositories.Actuator,
	backend repositories.Backend,
	observers Observers,
	session *entities.SessionState,
	snapshots repositories.SnapshotStore,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		cycles:    cycles,
		actuator:  actuator,
		backend:   backend,
		observers: observers,
		session:   session,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Stop runs the full shutdown sequence. Each step is fault-isolated: a
// failing device never prevents the others from being turned off.
func (c *Coordinator) Stop(reason string) Report {
	c.mu.Lock()
	if c.triggered {
		c.mu.Unlock()
		c.logger.Info("Emergency stop already triggered", zap.String("reason", reason))
		return Report{AlreadyTriggered: true, Reason: reason}
	}
	c.triggered = true
	c.mu.Unlock()

	c.logger.Warn("EMERGENCY STOP", zap.String("reason", reason))
	report := Report{Reason: reason}

	// StopAll already forces cycling devices off on the way to Idle, so
	// those keys are skipped in the sweep below.
	report.CyclesStopped = c.cycles.StopAll()
	seen := make(map[string]bool)
	for _, key := range report.CyclesStopped {
		seen[key] = true
		report.DevicesOff = append(report.DevicesOff, key)
	}

	for _, desc := range c.cycles.Devices() {
		if seen[desc.Key] {
			continue
		}
		seen[desc.Key] = true
		c.forceOff(desc, &report)
	}
	for _, key := range c.session.DeviceKeys() {
		if seen[key] {
			continue
		}
		c.forceOff(c.cycles.Descriptor(key), &report)
	}

	report.AbortedRequests = c.backend.AbortAllRequests()
	c.logger.Info("Aborted in-flight generation requests",
		zap.Int("count", report.AbortedRequests))

	if c.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), deviceOffTimeout)
		if err := c.snapshots.Save(ctx, c.session.Snapshot()); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("snapshot: %v", err))
			c.logger.Error("Failed to save emergency snapshot", zap.Error(err))
		}
		cancel()
	}

	// Final notification goes out before connections close.
	c.observers.Publish(bus.EventEmergencyStop, report)
	c.observers.CloseAll()

	return report
}

// Triggered reports whether the stop has already run.
func (c *Coordinator) Triggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered
}

func (c *Coordinator) forceOff(desc entities.DeviceDescriptor, report *Report) {
	ctx, cancel := context.WithTimeout(context.Background(), deviceOffTimeout)
	defer cancel()
	if err := c.actuator.TurnOff(ctx, desc); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", desc.Key, err))
		c.logger.Error("Failed to force device off",
			zap.String("deviceKey", desc.Key),
			zap.Error(err))
		return
	}
	c.session.SetDeviceState(desc.Key, entities.ActuationOff)
	report.DevicesOff = append(report.DevicesOff, desc.Key)
}
