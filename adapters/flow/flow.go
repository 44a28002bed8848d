// Package flow holds stand-ins for the external flow-engine
// collaborator. The real engine runs out of process and talks back
// through the inbound event surface.
package flow

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// Nop logs flow callbacks and discards them. Used when no flow engine
// is attached.
type Nop struct {
	logger *zap.Logger
}

// NewNop creates the no-op flow engine.
func NewNop(logger *zap.Logger) *Nop {
	return &Nop{logger: logger}
}

func (n *Nop) PlayerSpeaks(content string) {
	n.logger.Debug("Flow callback dropped", zap.String("callback", "player_speaks"))
}

func (n *Nop) CheckThresholds(capacity int, sensation, emotion string) {
	n.logger.Debug("Flow callback dropped",
		zap.String("callback", "check_thresholds"),
		zap.Int("capacity", capacity))
}

func (n *Nop) CycleCompleted(report entities.CycleReport) {
	n.logger.Debug("Flow callback dropped",
		zap.String("callback", "cycle_completed"),
		zap.String("deviceKey", report.DeviceKey))
}

func (n *Nop) TriggerEvent(name string) {
	n.logger.Debug("Flow callback dropped",
		zap.String("callback", "trigger_event"),
		zap.String("event", name))
}

func (n *Nop) PlayerChoice(nodeID, choiceID string) {
	n.logger.Debug("Flow callback dropped", zap.String("callback", "player_choice"))
}

// Recorder captures every flow callback for test assertions.
type Recorder struct {
	mu sync.Mutex

	SpeaksCalls     []string
	ThresholdCalls  []ThresholdCall
	CompletedCycles []entities.CycleReport
	Events          []string
	Choices         [][2]string
}

// ThresholdCall is one CheckThresholds invocation.
type ThresholdCall struct {
	Capacity  int
	Sensation string
	Emotion   string
}

// NewRecorder creates a recording flow engine.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PlayerSpeaks(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SpeaksCalls = append(r.SpeaksCalls, content)
}

func (r *Recorder) CheckThresholds(capacity int, sensation, emotion string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ThresholdCalls = append(r.ThresholdCalls, ThresholdCall{capacity, sensation, emotion})
}

func (r *Recorder) CycleCompleted(report entities.CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CompletedCycles = append(r.CompletedCycles, report)
}

func (r *Recorder) TriggerEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, name)
}

func (r *Recorder) PlayerChoice(nodeID, choiceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Choices = append(r.Choices, [2]string{nodeID, choiceID})
}

// Thresholds returns a copy of the recorded threshold calls.
func (r *Recorder) Thresholds() []ThresholdCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ThresholdCall, len(r.ThresholdCalls))
	copy(out, r.ThresholdCalls)
	return out
}

// Cycles returns a copy of the recorded cycle completions.
func (r *Recorder) Cycles() []entities.CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.CycleReport, len(r.CompletedCycles))
	copy(out, r.CompletedCycles)
	return out
}
