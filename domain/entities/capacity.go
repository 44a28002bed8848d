package entities

// capacityBands maps a capacity percentage to the descriptive state used
// in the generation constraint block. Bands are ordered and contiguous;
// anything above the last threshold reads as beyond full.
var capacityBands = []struct {
	max   int
	label string
}{
	{0, "completely flat and empty"},
	{15, "barely rounded"},
	{35, "noticeably swollen"},
	{55, "taut and heavy"},
	{75, "very full and tight"},
	{85, "straining at the limit"},
	{95, "at absolute capacity"},
}

// CapacityDescriptor returns the descriptive state for a capacity value.
// Monotonic over the whole 0-100+ range.
func CapacityDescriptor(capacity int) string {
	if capacity < 0 {
		capacity = 0
	}
	for _, band := range capacityBands {
		if capacity <= band.max {
			return band.label
		}
	}
	return "beyond full, past any reasonable limit"
}
