// Package substitute resolves the bracket tag language used in character
// text: [Player], [Char], [Capacity], [Feeling], [Emotion] and
// [Flow:name]. Resolution never fails; unknown flow tags stay verbatim.
package substitute

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

var flowTag = regexp.MustCompile(`\[Flow:([^\]\[]+)\]`)

// Apply resolves every tag in text against the session, with overrides
// taking precedence per tag name ("Player", "Char", "Capacity",
// "Feeling", "Emotion", or a flow variable name).
func Apply(text string, state *entities.SessionState, overrides map[string]string) string {
	resolve := func(tag, fallback string) string {
		if overrides != nil {
			if v, ok := overrides[tag]; ok {
				return v
			}
		}
		return fallback
	}

	// Fixed resolution order: persona, character, capacity, sensation,
	// emotion, then named flow variables.
	text = strings.ReplaceAll(text, "[Player]", resolve("Player", state.PersonaName()))
	text = strings.ReplaceAll(text, "[Char]", resolve("Char", state.CharacterName()))
	text = strings.ReplaceAll(text, "[Capacity]", resolve("Capacity", strconv.Itoa(state.Capacity())))
	text = strings.ReplaceAll(text, "[Feeling]", resolve("Feeling", state.Sensation()))
	text = strings.ReplaceAll(text, "[Emotion]", resolve("Emotion", state.Emotion()))

	return flowTag.ReplaceAllStringFunc(text, func(tag string) string {
		name := flowTag.FindStringSubmatch(tag)[1]
		if overrides != nil {
			if v, ok := overrides[name]; ok {
				return v
			}
		}
		if v, ok := state.FlowVar(name); ok {
			return v
		}
		return tag
	})
}
