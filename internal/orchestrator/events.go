package orchestrator

// Inbound event types accepted from observers.
const (
	EvChatMessage      = "chat_message"
	EvSpecialGenerate  = "special_generate"
	EvImpersonate      = "impersonate_request"
	EvUpdateCapacity   = "update_capacity"
	EvUpdateSensation  = "update_sensation"
	EvUpdateEmotion    = "update_emotion"
	EvSetAutoReply     = "set_auto_reply"
	EvSetControlMode   = "set_control_mode"
	EvStartCycle       = "start_cycle"
	EvEndInfiniteCycle = "end_infinite_cycle"
	EvEditMessage      = "edit_message"
	EvDeleteMessage    = "delete_message"
	EvSwipeMessage     = "swipe_message"
	EvExecuteButton    = "execute_button"
	EvPlayerChoice     = "player_choice_response"
	EvRefreshSettings  = "refresh_settings"
	EvEmergencyStop    = "emergency_stop"
)

type chatMessagePayload struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type specialGeneratePayload struct {
	Mode       string `json:"mode"`
	GuidedText string `json:"guided_text"`
}

type impersonatePayload struct {
	GuidedText string `json:"guided_text"`
}

type intValuePayload struct {
	Value int `json:"value"`
}

type stringValuePayload struct {
	Value string `json:"value"`
}

type autoReplyPayload struct {
	Enabled bool `json:"enabled"`
}

type controlModePayload struct {
	Mode string `json:"mode"`
}

type cyclePayload struct {
	DeviceKey  string `json:"device_key"`
	OnSeconds  int    `json:"on_seconds"`
	OffSeconds int    `json:"off_seconds"`
	CycleCount int    `json:"cycle_count"`
}

type deviceKeyPayload struct {
	DeviceKey string `json:"device_key"`
}

type editMessagePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type messageIDPayload struct {
	ID string `json:"id"`
}

type executeButtonPayload struct {
	Actions []Action `json:"actions"`
}

type playerChoicePayload struct {
	NodeID   string `json:"node_id"`
	ChoiceID string `json:"choice_id"`
}

type emergencyStopPayload struct {
	Reason string `json:"reason"`
}
