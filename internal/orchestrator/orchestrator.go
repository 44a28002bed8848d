// Package orchestrator coordinates the live session: it owns inbound
// event dispatch, couples the generation pipeline, cycle scheduler and
// flow engine to the shared session record, and funnels uncaught faults
// into the emergency stop.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/cycle"
	"github.com/Airegasm/SwellDreams-sub006/internal/estop"
	"github.com/Airegasm/SwellDreams-sub006/internal/pipeline"
)

// Config tunes orchestrator behavior.
type Config struct {
	// Streaming switches generation to incremental token delivery.
	Streaming bool
	// SnapshotInterval is how often the session is persisted. Zero
	// disables periodic snapshotting.
	SnapshotInterval time.Duration
}

// Orchestrator is the single event-processing core of the session.
type Orchestrator struct {
	session   *entities.SessionState
	pipe      *pipeline.Pipeline
	scheduler *cycle.Scheduler
	publisher repositories.Publisher
	flow      repositories.FlowEngine
	actuator  repositories.Actuator
	snapshots repositories.SnapshotStore
	stopper   *estop.Coordinator
	character *entities.Character
	config    Config
	logger    *zap.Logger

	// welcomeMu guards the whole welcome emission, backend call
	// included, because bootstrap and settings refresh can race before
	// either has appended to the log.
	welcomeMu   sync.Mutex
	welcomeSent bool
}

// New wires the orchestrator. The emergency-stop coordinator is attached
// afterwards via SetStopper because it needs the scheduler and hub that
// already exist by then.
func New(
	session *entities.SessionState,
	pipe *pipeline.Pipeline,
	scheduler *cycle.Scheduler,
	publisher repositories.Publisher,
	flow repositories.FlowEngine,
	actuator repositories.Actuator,
	snapshots repositories.SnapshotStore,
	character *entities.Character,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		session:   session,
		pipe:      pipe,
		scheduler: scheduler,
		publisher: publisher,
		flow:      flow,
		actuator:  actuator,
		snapshots: snapshots,
		character: character,
		config:    config,
		logger:    logger,
	}
}

// SetStopper attaches the emergency-stop coordinator.
func (o *Orchestrator) SetStopper(s *estop.Coordinator) {
	o.stopper = s
}

// Run restores the last snapshot, emits the welcome message and then
// snapshots periodically until the context ends.
func (o *Orchestrator) Run(ctx context.Context) {
	if o.snapshots != nil {
		if snap, ok, err := o.snapshots.LoadLatest(ctx); err != nil {
			o.logger.Error("Failed to load session snapshot", zap.Error(err))
		} else if ok {
			o.session.Restore(snap)
			o.welcomeMu.Lock()
			o.welcomeSent = o.session.MessageCount() > 0
			o.welcomeMu.Unlock()
			o.logger.Info("Session restored from snapshot",
				zap.Int("messages", o.session.MessageCount()))
		}
	}

	o.EmitWelcome(ctx)

	if o.snapshots == nil || o.config.SnapshotInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(o.config.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := o.snapshots.Save(saveCtx, o.session.Snapshot()); err != nil {
				o.logger.Error("Failed to save session snapshot", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// HandleEvent dispatches one inbound event. Implements bus.EventSink.
// A panic anywhere below funnels into the emergency stop; nothing may
// leave a device mid-cycle.
func (o *Orchestrator) HandleEvent(ctx context.Context, eventType string, payload json.RawMessage) (err error) {
	defer o.recoverToStop("event " + eventType)

	switch eventType {
	case EvChatMessage:
		return o.handleChatMessage(ctx, payload)
	case EvSpecialGenerate:
		return o.handleSpecialGenerate(ctx, payload)
	case EvImpersonate:
		return o.handleImpersonate(ctx, payload)
	case EvUpdateCapacity:
		var p intValuePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("update_capacity payload: %w", err)
		}
		o.SetCapacity(p.Value)
	case EvUpdateSensation:
		var p stringValuePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("update_sensation payload: %w", err)
		}
		o.SetSensation(p.Value)
	case EvUpdateEmotion:
		var p stringValuePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("update_emotion payload: %w", err)
		}
		o.SetEmotion(p.Value)
	case EvSetAutoReply:
		var p autoReplyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("set_auto_reply payload: %w", err)
		}
		o.session.SetAutoReply(p.Enabled)
		o.publisher.Publish(bus.EventAutoReplyUpdate, map[string]any{"enabled": p.Enabled})
	case EvSetControlMode:
		var p controlModePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("set_control_mode payload: %w", err)
		}
		o.session.SetControlMode(entities.ControlMode(p.Mode))
		o.publisher.Publish(bus.EventControlMode, map[string]any{"mode": p.Mode})
	case EvStartCycle:
		var p cyclePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("start_cycle payload: %w", err)
		}
		o.scheduler.StartCycle(p.DeviceKey, entities.CycleSettings{
			OnDuration:  time.Duration(p.OnSeconds) * time.Second,
			OffInterval: time.Duration(p.OffSeconds) * time.Second,
			CycleCount:  p.CycleCount,
		})
	case EvEndInfiniteCycle:
		var p deviceKeyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("end_infinite_cycle payload: %w", err)
		}
		o.scheduler.StopCycle(p.DeviceKey)
	case EvEditMessage:
		return o.handleEditMessage(payload)
	case EvDeleteMessage:
		var p messageIDPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("delete_message payload: %w", err)
		}
		if o.session.DeleteMessage(p.ID) {
			o.publisher.Publish(bus.EventMessageDeleted, map[string]any{"message_id": p.ID})
		}
	case EvSwipeMessage:
		var p messageIDPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("swipe_message payload: %w", err)
		}
		o.spawn("swipe", func(ctx context.Context) {
			o.pipe.Generate(ctx, pipeline.Options{
				Kind:      pipeline.KindCharacter,
				Streaming: o.config.Streaming,
				TargetID:  p.ID,
			})
		})
	case EvExecuteButton:
		var p executeButtonPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("execute_button payload: %w", err)
		}
		return o.ExecuteActions(ctx, p.Actions)
	case EvPlayerChoice:
		var p playerChoicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("player_choice_response payload: %w", err)
		}
		o.flow.PlayerChoice(p.NodeID, p.ChoiceID)
	case EvRefreshSettings:
		// Settings changes can race session bootstrap on welcome
		// emission; EmitWelcome holds the guard for the whole call.
		o.spawn("welcome", o.EmitWelcome)
	case EvEmergencyStop:
		var p emergencyStopPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("emergency_stop payload: %w", err)
		}
		reason := p.Reason
		if reason == "" {
			reason = "operator request"
		}
		o.EmergencyStop(reason)
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}
	return nil
}

// EmergencyStop triggers the failsafe, if attached.
func (o *Orchestrator) EmergencyStop(reason string) {
	if o.stopper == nil {
		o.logger.Error("Emergency stop requested but no coordinator attached",
			zap.String("reason", reason))
		return
	}
	o.stopper.Stop(reason)
}

// SetCapacity stores the value and always fires both side effects: the
// broadcast and the flow engine's threshold check. Redundant updates
// re-fire on purpose; flows may rely on re-triggering.
func (o *Orchestrator) SetCapacity(v int) {
	o.session.SetCapacity(v)
	o.publisher.Publish(bus.EventCapacityUpdate, map[string]any{"capacity": o.session.Capacity()})
	o.flow.CheckThresholds(o.session.Capacity(), o.session.Sensation(), o.session.Emotion())
}

func (o *Orchestrator) SetSensation(v string) {
	o.session.SetSensation(v)
	o.publisher.Publish(bus.EventSensationUpdate, map[string]any{"sensation": v})
	o.flow.CheckThresholds(o.session.Capacity(), o.session.Sensation(), o.session.Emotion())
}

func (o *Orchestrator) SetEmotion(v string) {
	o.session.SetEmotion(v)
	o.publisher.Publish(bus.EventEmotionUpdate, map[string]any{"emotion": v})
	o.flow.CheckThresholds(o.session.Capacity(), o.session.Sensation(), o.session.Emotion())
}

func (o *Orchestrator) handleChatMessage(ctx context.Context, payload json.RawMessage) error {
	var p chatMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("chat_message payload: %w", err)
	}

	sender := entities.SenderPlayer
	if p.Sender != "" {
		sender = entities.Sender(p.Sender)
	}
	msg := entities.NewChatMessage(sender, p.Content)
	o.session.Append(msg)
	o.publisher.Publish(bus.EventChatMessage, *msg)

	if sender == entities.SenderPlayer {
		o.flow.PlayerSpeaks(p.Content)
		if o.session.AutoReply() {
			o.spawn("auto-reply", func(ctx context.Context) {
				o.pipe.Generate(ctx, pipeline.Options{
					Kind:      pipeline.KindCharacter,
					Streaming: o.config.Streaming,
				})
			})
		}
	}
	return nil
}

func (o *Orchestrator) handleSpecialGenerate(ctx context.Context, payload json.RawMessage) error {
	var p specialGeneratePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("special_generate payload: %w", err)
	}

	kind := pipeline.KindCharacter
	if p.Mode == "player" || p.Mode == "impersonate" {
		kind = pipeline.KindPlayer
	}
	o.spawn("special-generate", func(ctx context.Context) {
		o.pipe.Generate(ctx, pipeline.Options{
			Kind:      kind,
			Guidance:  p.GuidedText,
			Streaming: o.config.Streaming,
		})
	})
	return nil
}

func (o *Orchestrator) handleImpersonate(ctx context.Context, payload json.RawMessage) error {
	var p impersonatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("impersonate_request payload: %w", err)
	}
	o.spawn("impersonate", func(ctx context.Context) {
		o.pipe.Generate(ctx, pipeline.Options{
			Kind:      pipeline.KindPlayer,
			Guidance:  p.GuidedText,
			Streaming: o.config.Streaming,
		})
	})
	return nil
}

func (o *Orchestrator) handleEditMessage(payload json.RawMessage) error {
	var p editMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("edit_message payload: %w", err)
	}
	ok := o.session.UpdateMessage(p.ID, func(m *entities.ChatMessage) {
		m.Content = p.Content
		m.Edited = true
	})
	if !ok {
		return fmt.Errorf("edit_message: message %s not found", p.ID)
	}
	updated, _ := o.session.Message(p.ID)
	o.publisher.Publish(bus.EventMessageUpdated, updated)
	return nil
}

// EmitWelcome generates the opening character message. The guard is
// held across the whole emission, not just the check, so concurrent
// bootstrap and settings-refresh triggers commit at most one welcome.
func (o *Orchestrator) EmitWelcome(ctx context.Context) {
	o.welcomeMu.Lock()
	defer o.welcomeMu.Unlock()
	if o.welcomeSent {
		return
	}
	if o.character.Welcome == "" {
		o.welcomeSent = true
		return
	}

	msg, err := o.pipe.Generate(ctx, pipeline.Options{
		Kind:        pipeline.KindFlow,
		Instruction: o.character.Welcome,
		Streaming:   o.config.Streaming,
	})
	if err != nil {
		o.logger.Error("Welcome generation failed", zap.Error(err))
		return
	}
	if msg != nil {
		o.welcomeSent = true
	}
}

// spawn runs fn on its own goroutine with the fault funnel attached.
func (o *Orchestrator) spawn(name string, fn func(ctx context.Context)) {
	go func() {
		defer o.recoverToStop(name)
		fn(context.Background())
	}()
}

// recoverToStop converts a panic into an emergency stop. The process
// keeps running, but in a safe, device-off state.
func (o *Orchestrator) recoverToStop(where string) {
	if r := recover(); r != nil {
		o.logger.Error("Uncaught fault",
			zap.String("where", where),
			zap.Any("panic", r))
		o.EmergencyStop(fmt.Sprintf("uncaught fault in %s", where))
	}
}
