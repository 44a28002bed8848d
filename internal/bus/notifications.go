package bus

import "time"

// Notification types published on the bus.
const (
	EventChatMessage     = "chat_message"
	EventMessageUpdated  = "message_updated"
	EventMessageDeleted  = "message_deleted"
	EventStreamToken     = "stream_token"
	EventStreamComplete  = "stream_complete"
	EventGeneratingStart = "generating_start"
	EventGeneratingStop  = "generating_stop"
	EventCapacityUpdate  = "capacity_update"
	EventSensationUpdate = "sensation_update"
	EventEmotionUpdate   = "emotion_update"
	EventAutoReplyUpdate = "auto_reply_update"
	EventControlMode     = "control_mode_update"
	EventCycleOn         = "cycle_on"
	EventCycleOff        = "cycle_off"
	EventCycleComplete   = "cycle_complete"
	EventDeviceOn        = "device_on"
	EventDeviceOff       = "device_off"
	EventEmergencyStop   = "emergency_stop"
	EventError           = "error"
)

// Notification is the envelope every outbound event is wrapped in.
type Notification struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
