package entities

// Reminder is a standing instruction mixed into the system prompt.
// Constant reminders always apply; the rest only while enabled.
type Reminder struct {
	Text     string `json:"text" yaml:"text"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Constant bool   `json:"constant" yaml:"constant"`
}

// Character is the active persona definition driving generation.
type Character struct {
	Name      string     `json:"name" yaml:"name"`
	Persona   string     `json:"persona" yaml:"persona"`
	Scenario  string     `json:"scenario" yaml:"scenario"`
	Welcome   string     `json:"welcome" yaml:"welcome"`
	Reminders []Reminder `json:"reminders" yaml:"reminders"`
}

// ActiveReminders returns the reminder texts that currently apply.
func (c *Character) ActiveReminders() []string {
	var out []string
	for _, r := range c.Reminders {
		if r.Constant || r.Enabled {
			out = append(out, r.Text)
		}
	}
	return out
}
