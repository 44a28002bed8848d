package pipeline

import (
	"fmt"
	"strings"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// buildSystemPrompt assembles the instruction context for one request:
// persona, scenario, active reminders, then the physical-state
// constraint block.
func (p *Pipeline) buildSystemPrompt() string {
	var b strings.Builder

	char := p.character
	fmt.Fprintf(&b, "You are %s, in an ongoing roleplay with %s.\n", char.Name, p.session.PersonaName())
	if char.Persona != "" {
		fmt.Fprintf(&b, "\n%s\n", char.Persona)
	}
	if char.Scenario != "" {
		fmt.Fprintf(&b, "\nScenario: %s\n", char.Scenario)
	}

	if reminders := char.ActiveReminders(); len(reminders) > 0 {
		b.WriteString("\nAlways keep in mind:\n")
		for _, r := range reminders {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	capacity := p.session.Capacity()
	fmt.Fprintf(&b, "\nPhysical state (hard constraint):\n")
	fmt.Fprintf(&b, "- %s is currently %s (%d%% capacity).\n",
		p.session.PersonaName(), entities.CapacityDescriptor(capacity), capacity)
	fmt.Fprintf(&b, "- Current sensation: %s. Current emotion: %s.\n",
		p.session.Sensation(), p.session.Emotion())
	b.WriteString("- Describe this state as it is. Never narrate the state changing, ")
	b.WriteString("inflating or deflating; only the flow of the scene changes it.\n")

	return b.String()
}

// buildConversationPrompt renders the recent log as dialogue lines,
// skipping the placeholder for the turn in progress and any explicitly
// excluded message (a swiped turn must not see itself).
func (p *Pipeline) buildConversationPrompt(opts Options, placeholderID string) string {
	var b strings.Builder

	for _, m := range p.session.Recent(p.historyWindow) {
		if m.ID == placeholderID || m.ID == opts.ExcludeID {
			continue
		}
		name := p.session.PersonaName()
		switch m.Sender {
		case entities.SenderCharacter:
			name = p.character.Name
		case entities.SenderSystem:
			name = "Narrator"
		}
		fmt.Fprintf(&b, "%s: %s\n", name, m.Content)
	}

	if opts.Instruction != "" {
		fmt.Fprintf(&b, "\n[Direction for your next message: %s]\n", opts.Instruction)
	}
	if opts.Guidance != "" {
		fmt.Fprintf(&b, "\n[Guidance: %s]\n", opts.Guidance)
	}

	speaker := p.character.Name
	if opts.Kind == KindPlayer {
		speaker = p.session.PersonaName()
	}
	fmt.Fprintf(&b, "\n%s:", speaker)
	return b.String()
}

// uniquenessInstruction is appended after a rejected attempt.
const uniquenessInstruction = "Write a unique variation; do not repeat anything said recently."
