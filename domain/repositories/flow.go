package repositories

import "github.com/Airegasm/SwellDreams-sub006/domain/entities"

// FlowEngine is the external automation collaborator. The orchestrator
// only ever calls into it; the flow engine calls back through the
// inbound event surface like any other client.
type FlowEngine interface {
	// PlayerSpeaks fires whenever the player sends a chat message.
	PlayerSpeaks(content string)
	// CheckThresholds runs the flow engine's monitor hooks after a
	// capacity, sensation or emotion update. Deliberately fired on
	// redundant updates too; flows may rely on re-triggering.
	CheckThresholds(capacity int, sensation, emotion string)
	// CycleCompleted chains automation off a finished device cycle.
	CycleCompleted(report entities.CycleReport)
	// TriggerEvent forwards a named flow event (button links).
	TriggerEvent(name string)
	// PlayerChoice forwards an answered choice prompt.
	PlayerChoice(nodeID, choiceID string)
}
