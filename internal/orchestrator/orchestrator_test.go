package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/adapters/actuator"
	"github.com/Airegasm/SwellDreams-sub006/adapters/flow"
	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/cycle"
	"github.com/Airegasm/SwellDreams-sub006/internal/estop"
	"github.com/Airegasm/SwellDreams-sub006/internal/pipeline"
)

type stubBackend struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (b *stubBackend) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.reply, nil
}

func (b *stubBackend) GenerateStream(ctx context.Context, req repositories.GenerationRequest, onToken func(string)) (string, error) {
	text, err := b.Generate(ctx, req)
	if err == nil && text != "" {
		onToken(text)
	}
	return text, err
}

func (b *stubBackend) AbortAllRequests() int { return 0 }

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Publish(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *eventRecorder) CloseAll() {}

func (r *eventRecorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	orch    *Orchestrator
	session *entities.SessionState
	backend *stubBackend
	driver  *actuator.Memory
	pub     *eventRecorder
	flow    *flow.Recorder
	sched   *cycle.Scheduler
}

func newHarness(t *testing.T, welcome string) *harness {
	t.Helper()
	session := entities.NewSessionState("Alex", "Aria")
	backend := &stubBackend{reply: "Generated line."}
	driver := actuator.NewMemory()
	pub := &eventRecorder{}
	rec := flow.NewRecorder()
	character := &entities.Character{Name: "Aria", Persona: "A playful companion.", Welcome: welcome}
	sched := cycle.NewScheduler(clock.NewMock(), driver, pub, rec, session, zap.NewNop())
	pipe := pipeline.New(backend, pub, session, character, pipeline.Settings{Temperature: 0.9, MaxTokens: 256}, zap.NewNop())
	orch := New(session, pipe, sched, pub, rec, driver, nil, character, Config{}, zap.NewNop())
	return &harness{orch: orch, session: session, backend: backend, driver: driver, pub: pub, flow: rec, sched: sched}
}

func (h *harness) dispatch(t *testing.T, eventType, payload string) error {
	t.Helper()
	return h.orch.HandleEvent(context.Background(), eventType, json.RawMessage(payload))
}

// waitFor polls until cond holds; async handlers run on their own
// goroutines.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestConcurrentWelcomeEmitsOnce(t *testing.T) {
	h := newHarness(t, "Welcome to my parlor.")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.orch.EmitWelcome(context.Background())
		}()
	}
	wg.Wait()

	if got := h.session.MessageCount(); got != 1 {
		t.Fatalf("message count = %d, want exactly one welcome", got)
	}
	if got := h.backend.callCount(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}
	msg := h.session.Recent(1)[0]
	if msg.Sender != entities.SenderCharacter {
		t.Errorf("welcome sender = %s", msg.Sender)
	}
}

func TestEmptyWelcomeIsSkipped(t *testing.T) {
	h := newHarness(t, "")
	h.orch.EmitWelcome(context.Background())
	if h.session.MessageCount() != 0 {
		t.Error("no message expected for an empty welcome")
	}
	// The skip still latches; a later refresh must not emit either.
	h.orch.EmitWelcome(context.Background())
	if h.backend.callCount() != 0 {
		t.Error("backend must not be contacted")
	}
}

func TestRedundantCapacityUpdateRefiresThresholds(t *testing.T) {
	h := newHarness(t, "")

	for i := 0; i < 3; i++ {
		if err := h.dispatch(t, EvUpdateCapacity, `{"value": 60}`); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}

	if got := len(h.flow.Thresholds()); got != 3 {
		t.Errorf("threshold checks = %d, want 3 (redundant updates re-fire)", got)
	}
	if h.pub.count(bus.EventCapacityUpdate) != 3 {
		t.Errorf("capacity broadcasts = %d, want 3", h.pub.count(bus.EventCapacityUpdate))
	}
	if h.session.Capacity() != 60 {
		t.Errorf("capacity = %d", h.session.Capacity())
	}
}

func TestPlayerChatTriggersFlowAndAutoReply(t *testing.T) {
	h := newHarness(t, "")
	h.session.SetAutoReply(true)

	if err := h.dispatch(t, EvChatMessage, `{"content": "Please, go slower."}`); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	speaks := h.flow.SpeaksCalls
	if len(speaks) != 1 || speaks[0] != "Please, go slower." {
		t.Errorf("player speaks = %v", speaks)
	}

	// The auto-reply is generated asynchronously.
	waitFor(t, func() bool { return h.session.MessageCount() == 2 })
	reply := h.session.Recent(1)[0]
	if reply.Sender != entities.SenderCharacter || !reply.Generated {
		t.Errorf("unexpected auto-reply: %+v", reply)
	}
}

func TestCharacterChatDoesNotAutoReply(t *testing.T) {
	h := newHarness(t, "")
	h.session.SetAutoReply(true)

	if err := h.dispatch(t, EvChatMessage, `{"content": "Scripted line.", "sender": "character"}`); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if h.session.MessageCount() != 1 {
		t.Error("character-sent message must not trigger a reply")
	}
	if len(h.flow.SpeaksCalls) != 0 {
		t.Error("character messages are not player speech")
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	h := newHarness(t, "")
	msg := entities.NewChatMessage(entities.SenderCharacter, "Original.")
	h.session.Append(msg)

	payload, _ := json.Marshal(map[string]string{"id": msg.ID, "content": "Edited."})
	if err := h.dispatch(t, EvEditMessage, string(payload)); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	edited, _ := h.session.Message(msg.ID)
	if edited.Content != "Edited." || !edited.Edited {
		t.Errorf("edit not applied: %+v", edited)
	}

	payload, _ = json.Marshal(map[string]string{"id": msg.ID})
	if err := h.dispatch(t, EvDeleteMessage, string(payload)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if h.session.MessageCount() != 0 {
		t.Error("message not deleted")
	}
	if h.pub.count(bus.EventMessageDeleted) != 1 {
		t.Error("delete must be broadcast")
	}
}

func TestEditMissingMessageErrors(t *testing.T) {
	h := newHarness(t, "")
	err := h.dispatch(t, EvEditMessage, `{"id": "ghost", "content": "x"}`)
	if err == nil {
		t.Error("editing a missing message must error")
	}
}

func TestSwipeRegeneratesMessage(t *testing.T) {
	h := newHarness(t, "")
	msg := entities.NewChatMessage(entities.SenderCharacter, "First version.")
	h.session.Append(msg)

	payload, _ := json.Marshal(map[string]string{"id": msg.ID})
	if err := h.dispatch(t, EvSwipeMessage, string(payload)); err != nil {
		t.Fatalf("swipe failed: %v", err)
	}

	waitFor(t, func() bool {
		m, ok := h.session.Message(msg.ID)
		return ok && m.Content == "Generated line."
	})
	regenerated, _ := h.session.Message(msg.ID)
	if !regenerated.Swiped {
		t.Error("regenerated message must be marked swiped")
	}
	if h.session.MessageCount() != 1 {
		t.Error("swipe must not grow the log")
	}
}

func TestExecuteButtonRunsActionsInOrder(t *testing.T) {
	h := newHarness(t, "")

	payload := `{"actions": [
		{"type": "adjust_capacity", "amount": 25},
		{"type": "turn_on", "device_key": "pump"},
		{"type": "bogus_action"},
		{"type": "link_flow", "flow_event": "deflate_scene"}
	]}`
	if err := h.dispatch(t, EvExecuteButton, payload); err != nil {
		t.Fatalf("execute_button failed: %v", err)
	}

	if h.session.Capacity() != 25 {
		t.Errorf("capacity = %d, want 25", h.session.Capacity())
	}
	if got := h.driver.CallsFor("pump"); len(got) != 1 || got[0] != "on" {
		t.Errorf("turn_on not executed: %v", got)
	}
	// The bogus action is reported but does not abort the rest.
	if h.pub.count(bus.EventError) != 1 {
		t.Errorf("error events = %d, want 1", h.pub.count(bus.EventError))
	}
	if len(h.flow.Events) != 1 || h.flow.Events[0] != "deflate_scene" {
		t.Errorf("link_flow not executed after the failure: %v", h.flow.Events)
	}
}

func TestStartAndEndCycleEvents(t *testing.T) {
	h := newHarness(t, "")

	if err := h.dispatch(t, EvStartCycle, `{"device_key": "pump", "on_seconds": 3, "off_seconds": 3, "cycle_count": 0}`); err != nil {
		t.Fatalf("start_cycle failed: %v", err)
	}
	if !h.sched.Active("pump") {
		t.Fatal("cycle not started")
	}

	if err := h.dispatch(t, EvEndInfiniteCycle, `{"device_key": "pump"}`); err != nil {
		t.Fatalf("end_infinite_cycle failed: %v", err)
	}
	if h.sched.Active("pump") {
		t.Error("cycle still active after end")
	}
}

func TestEmergencyStopEventLatches(t *testing.T) {
	h := newHarness(t, "")
	stopper := estop.NewCoordinator(h.sched, h.driver, h.backend, h.pub, h.session, nil, zap.NewNop())
	h.orch.SetStopper(stopper)

	if err := h.dispatch(t, EvEmergencyStop, `{"reason": "panic button"}`); err != nil {
		t.Fatalf("emergency_stop failed: %v", err)
	}
	if !stopper.Triggered() {
		t.Fatal("stop not triggered")
	}
	if h.pub.count(bus.EventEmergencyStop) != 1 {
		t.Error("emergency_stop not broadcast")
	}

	// Repeat is a quiet no-op.
	if err := h.dispatch(t, EvEmergencyStop, `{}`); err != nil {
		t.Fatalf("second emergency_stop failed: %v", err)
	}
	if h.pub.count(bus.EventEmergencyStop) != 1 {
		t.Error("second stop must not re-broadcast")
	}
}

func TestMalformedPayloadIsErrorNotFault(t *testing.T) {
	h := newHarness(t, "")
	stopper := estop.NewCoordinator(h.sched, h.driver, h.backend, h.pub, h.session, nil, zap.NewNop())
	h.orch.SetStopper(stopper)

	if err := h.dispatch(t, EvChatMessage, `{"content":`); err == nil {
		t.Error("malformed payload must surface an error")
	}
	if stopper.Triggered() {
		t.Fatal("malformed json is an error, not a fault")
	}

	if err := h.dispatch(t, EvSetControlMode, `{"mode": "partner"}`); err != nil {
		t.Fatalf("set_control_mode failed: %v", err)
	}
	if h.session.ControlMode() != entities.ControlModePartner {
		t.Errorf("control mode = %s", h.session.ControlMode())
	}
}

func TestUnknownEventTypeErrors(t *testing.T) {
	h := newHarness(t, "")
	if err := h.dispatch(t, "no_such_event", `{}`); err == nil {
		t.Error("unknown event type must error")
	}
}

func TestAutoReplyToggleEvent(t *testing.T) {
	h := newHarness(t, "")
	if err := h.dispatch(t, EvSetAutoReply, `{"enabled": true}`); err != nil {
		t.Fatalf("set_auto_reply failed: %v", err)
	}
	if !h.session.AutoReply() {
		t.Error("auto-reply not enabled")
	}
	if h.pub.count(bus.EventAutoReplyUpdate) != 1 {
		t.Error("toggle not broadcast")
	}
}
