package entities

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderPlayer    Sender = "player"
	SenderCharacter Sender = "character"
	SenderSystem    Sender = "system"
)

// ControlMode selects who is driving the appliance.
type ControlMode string

const (
	ControlModeSelf    ControlMode = "self"
	ControlModePartner ControlMode = "partner"
	ControlModeAuto    ControlMode = "auto"
)

// ChatMessage is a single turn in the session log. Placeholder messages
// are appended before generation completes and updated in place.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited,omitempty"`
	Swiped    bool      `json:"swiped,omitempty"`
	Streaming bool      `json:"streaming,omitempty"`
	Generated bool      `json:"generated,omitempty"`
}

// NewChatMessage creates a message with a fresh id and current timestamp.
func NewChatMessage(sender Sender, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// SessionState is the single live session record. Exactly one instance
// exists for the process lifetime; it is shared between the inbound
// dispatcher, cycle timers and generation goroutines, so every accessor
// takes the lock.
type SessionState struct {
	mu sync.RWMutex

	capacity     int
	sensation    string
	emotion      string
	messages     []*ChatMessage
	flowVars     map[string]string
	deviceStates map[string]ActuationState
	autoReply    bool
	controlMode  ControlMode

	personaName   string
	characterName string
}

// NewSessionState creates the session record with the given persona and
// character display names.
func NewSessionState(personaName, characterName string) *SessionState {
	return &SessionState{
		sensation:     "neutral",
		emotion:       "calm",
		flowVars:      make(map[string]string),
		deviceStates:  make(map[string]ActuationState),
		controlMode:   ControlModeSelf,
		personaName:   personaName,
		characterName: characterName,
	}
}

func (s *SessionState) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// SetCapacity stores the new capacity value. Negative values clamp to
// zero; values above 100 are allowed (overfill is a real state).
func (s *SessionState) SetCapacity(v int) {
	if v < 0 {
		v = 0
	}
	s.mu.Lock()
	s.capacity = v
	s.mu.Unlock()
}

func (s *SessionState) Sensation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensation
}

func (s *SessionState) SetSensation(v string) {
	s.mu.Lock()
	s.sensation = v
	s.mu.Unlock()
}

func (s *SessionState) Emotion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emotion
}

func (s *SessionState) SetEmotion(v string) {
	s.mu.Lock()
	s.emotion = v
	s.mu.Unlock()
}

func (s *SessionState) AutoReply() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoReply
}

func (s *SessionState) SetAutoReply(v bool) {
	s.mu.Lock()
	s.autoReply = v
	s.mu.Unlock()
}

func (s *SessionState) ControlMode() ControlMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controlMode
}

func (s *SessionState) SetControlMode(m ControlMode) {
	s.mu.Lock()
	s.controlMode = m
	s.mu.Unlock()
}

func (s *SessionState) PersonaName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personaName
}

func (s *SessionState) CharacterName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.characterName
}

func (s *SessionState) FlowVar(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flowVars[name]
	return v, ok
}

func (s *SessionState) SetFlowVar(name, value string) {
	s.mu.Lock()
	s.flowVars[name] = value
	s.mu.Unlock()
}

func (s *SessionState) DeviceState(key string) ActuationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.deviceStates[key]; ok {
		return st
	}
	return ActuationUnknown
}

func (s *SessionState) SetDeviceState(key string, st ActuationState) {
	s.mu.Lock()
	s.deviceStates[key] = st
	s.mu.Unlock()
}

// DeviceKeys returns every device key the session has actuated so far.
func (s *SessionState) DeviceKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.deviceStates))
	for k := range s.deviceStates {
		keys = append(keys, k)
	}
	return keys
}

// Append adds a message to the end of the log.
func (s *SessionState) Append(msg *ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Message returns a copy of the message with the given id.
func (s *SessionState) Message(id string) (ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return *m, true
		}
	}
	return ChatMessage{}, false
}

// UpdateMessage mutates the message with the given id under the lock.
// Returns false when the message no longer exists, which is how a stale
// generation result for a deleted turn gets discarded.
func (s *SessionState) UpdateMessage(id string, fn func(*ChatMessage)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			fn(m)
			return true
		}
	}
	return false
}

// DeleteMessage removes the message with the given id from the log.
func (s *SessionState) DeleteMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Recent returns copies of the last n messages, oldest first.
func (s *SessionState) Recent(n int) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]ChatMessage, 0, len(s.messages)-start)
	for _, m := range s.messages[start:] {
		out = append(out, *m)
	}
	return out
}

// MessageCount returns the current log length.
func (s *SessionState) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// IsRecentDuplicate reports whether candidate matches any of the last
// window messages, ignoring case and surrounding whitespace. This is the
// duplicate gate for generated text. excludeID skips the placeholder the
// candidate is destined for, which may already hold streamed content.
func (s *SessionState) IsRecentDuplicate(candidate string, window int, excludeID string) bool {
	norm := strings.ToLower(strings.TrimSpace(candidate))
	if norm == "" {
		return false
	}
	// Fetch one extra so excluding the placeholder does not shrink the
	// window, then truncate back to the most recent window messages.
	recent := s.Recent(window + 1)
	if excludeID != "" {
		kept := recent[:0]
		for _, m := range recent {
			if m.ID != excludeID {
				kept = append(kept, m)
			}
		}
		recent = kept
	}
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	for _, m := range recent {
		if strings.ToLower(strings.TrimSpace(m.Content)) == norm {
			return true
		}
	}
	return false
}

// Snapshot is a serializable copy of the session used for periodic
// persistence and crash recovery.
type Snapshot struct {
	Capacity     int                       `json:"capacity"`
	Sensation    string                    `json:"sensation"`
	Emotion      string                    `json:"emotion"`
	Messages     []ChatMessage             `json:"messages"`
	FlowVars     map[string]string         `json:"flow_vars"`
	DeviceStates map[string]ActuationState `json:"device_states"`
	AutoReply    bool                      `json:"auto_reply"`
	ControlMode  ControlMode               `json:"control_mode"`
	TakenAt      time.Time                 `json:"taken_at"`
}

// Snapshot captures the current session values.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Capacity:     s.capacity,
		Sensation:    s.sensation,
		Emotion:      s.emotion,
		Messages:     make([]ChatMessage, 0, len(s.messages)),
		FlowVars:     make(map[string]string, len(s.flowVars)),
		DeviceStates: make(map[string]ActuationState, len(s.deviceStates)),
		AutoReply:    s.autoReply,
		ControlMode:  s.controlMode,
		TakenAt:      time.Now(),
	}
	for _, m := range s.messages {
		snap.Messages = append(snap.Messages, *m)
	}
	for k, v := range s.flowVars {
		snap.FlowVars[k] = v
	}
	for k, v := range s.deviceStates {
		snap.DeviceStates[k] = v
	}
	return snap
}

// Restore replaces the session values with a previously taken snapshot.
// Device states are deliberately not restored as "on": after a restart
// nothing is known to be running, so everything comes back unknown.
func (s *SessionState) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = snap.Capacity
	s.sensation = snap.Sensation
	s.emotion = snap.Emotion
	s.autoReply = snap.AutoReply
	if snap.ControlMode != "" {
		s.controlMode = snap.ControlMode
	}
	s.messages = s.messages[:0]
	for i := range snap.Messages {
		m := snap.Messages[i]
		s.messages = append(s.messages, &m)
	}
	s.flowVars = make(map[string]string, len(snap.FlowVars))
	for k, v := range snap.FlowVars {
		s.flowVars[k] = v
	}
	s.deviceStates = make(map[string]ActuationState, len(snap.DeviceStates))
	for k := range snap.DeviceStates {
		s.deviceStates[k] = ActuationUnknown
	}
}

// MarshalJSON serializes the session as its snapshot form.
func (s *SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
