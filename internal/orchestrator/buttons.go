package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/pipeline"
)

// ActionType enumerates the button action vocabulary.
type ActionType string

const (
	ActionSendMessage    ActionType = "send_message"
	ActionTurnOn         ActionType = "turn_on"
	ActionCycle          ActionType = "cycle"
	ActionLinkFlow       ActionType = "link_flow"
	ActionStopCycle      ActionType = "stop_cycle"
	ActionAdjustCapacity ActionType = "adjust_capacity"
)

// Action is one step of a button press.
type Action struct {
	Type       ActionType `json:"type"`
	Text       string     `json:"text,omitempty"`
	DeviceKey  string     `json:"device_key,omitempty"`
	OnSeconds  int        `json:"on_seconds,omitempty"`
	OffSeconds int        `json:"off_seconds,omitempty"`
	CycleCount int        `json:"cycle_count,omitempty"`
	FlowEvent  string     `json:"flow_event,omitempty"`
	Amount     int        `json:"amount,omitempty"`
}

// ExecuteActions runs a button's actions in order. A failing action is
// reported and does not abort the rest.
func (o *Orchestrator) ExecuteActions(ctx context.Context, actions []Action) error {
	for i, action := range actions {
		if err := o.executeAction(ctx, action); err != nil {
			o.logger.Error("Button action failed",
				zap.Int("index", i),
				zap.String("type", string(action.Type)),
				zap.Error(err))
			o.publisher.Publish(bus.EventError, map[string]any{
				"message": fmt.Sprintf("action %s failed", action.Type),
			})
		}
	}
	return nil
}

func (o *Orchestrator) executeAction(ctx context.Context, action Action) error {
	switch action.Type {
	case ActionSendMessage:
		o.spawn("button message", func(ctx context.Context) {
			o.pipe.Generate(ctx, pipeline.Options{
				Kind:        pipeline.KindFlow,
				Instruction: action.Text,
				Streaming:   o.config.Streaming,
			})
		})
		return nil

	case ActionTurnOn:
		desc := o.scheduler.Descriptor(action.DeviceKey)
		if err := o.actuator.TurnOn(ctx, desc); err != nil {
			return err
		}
		o.session.SetDeviceState(action.DeviceKey, entities.ActuationOn)
		o.publisher.Publish(bus.EventDeviceOn, map[string]any{"device_key": action.DeviceKey})
		return nil

	case ActionCycle:
		o.scheduler.StartCycle(action.DeviceKey, entities.CycleSettings{
			OnDuration:  time.Duration(action.OnSeconds) * time.Second,
			OffInterval: time.Duration(action.OffSeconds) * time.Second,
			CycleCount:  action.CycleCount,
		})
		return nil

	case ActionLinkFlow:
		o.flow.TriggerEvent(action.FlowEvent)
		return nil

	case ActionStopCycle:
		o.scheduler.StopCycle(action.DeviceKey)
		return nil

	case ActionAdjustCapacity:
		o.SetCapacity(o.session.Capacity() + action.Amount)
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
