package entities

import (
	"strconv"
	"testing"
)

func TestIsRecentDuplicate(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	s.Append(NewChatMessage(SenderCharacter, "Hello there"))
	s.Append(NewChatMessage(SenderPlayer, "hi"))

	if !s.IsRecentDuplicate("hello there  ", 5, "") {
		t.Error("case and whitespace variants should count as duplicates")
	}
	if s.IsRecentDuplicate("Hello there!", 5, "") {
		t.Error("punctuation differences should not count as duplicates")
	}
	if s.IsRecentDuplicate("", 5, "") {
		t.Error("blank candidate should never match")
	}
}

func TestIsRecentDuplicateWindow(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	s.Append(NewChatMessage(SenderCharacter, "old line"))
	for i := 0; i < 5; i++ {
		s.Append(NewChatMessage(SenderPlayer, "filler "+strconv.Itoa(i)))
	}

	if s.IsRecentDuplicate("old line", 5, "") {
		t.Error("messages outside the window should not count")
	}
}

func TestIsRecentDuplicateWindowWithExclusion(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	s.Append(NewChatMessage(SenderCharacter, "old line"))
	for i := 0; i < 4; i++ {
		s.Append(NewChatMessage(SenderPlayer, "filler "+strconv.Itoa(i)))
	}
	placeholder := NewChatMessage(SenderCharacter, "…")
	s.Append(placeholder)

	// The excluded placeholder must not consume a window slot.
	if !s.IsRecentDuplicate("old line", 5, placeholder.ID) {
		t.Error("window shrank when the placeholder was excluded")
	}
	// Without an exclusion the window is exactly five messages.
	if s.IsRecentDuplicate("old line", 5, "") {
		t.Error("exclusion-free scan must cover only the last five")
	}
}

func TestIsRecentDuplicateExcludesPlaceholder(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	placeholder := NewChatMessage(SenderCharacter, "streamed text")
	s.Append(placeholder)

	if s.IsRecentDuplicate("streamed text", 5, placeholder.ID) {
		t.Error("the placeholder's own streamed content must not flag its final text")
	}
}

func TestCapacityDescriptorMonotonicAndTotal(t *testing.T) {
	last := ""
	changes := 0
	for c := 0; c <= 150; c++ {
		d := CapacityDescriptor(c)
		if d == "" {
			t.Fatalf("no descriptor for capacity %d", c)
		}
		if d != last {
			changes++
			last = d
		}
	}
	if changes != len(capacityBands)+1 {
		t.Errorf("expected %d distinct bands over 0-150, got %d", len(capacityBands)+1, changes)
	}
	if CapacityDescriptor(-5) != CapacityDescriptor(0) {
		t.Error("negative capacity should clamp to the empty band")
	}
}

func TestUpdateAndDeleteMessage(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	msg := NewChatMessage(SenderCharacter, "…")
	s.Append(msg)

	ok := s.UpdateMessage(msg.ID, func(m *ChatMessage) {
		m.Content = "done"
		m.Generated = true
	})
	if !ok {
		t.Fatal("UpdateMessage should find the appended message")
	}
	got, _ := s.Message(msg.ID)
	if got.Content != "done" || !got.Generated {
		t.Errorf("update not applied: %+v", got)
	}

	if !s.DeleteMessage(msg.ID) {
		t.Fatal("DeleteMessage should remove the message")
	}
	if s.UpdateMessage(msg.ID, func(m *ChatMessage) { m.Content = "ghost" }) {
		t.Error("UpdateMessage on a deleted id must report false")
	}
	if s.MessageCount() != 0 {
		t.Errorf("expected empty log, got %d messages", s.MessageCount())
	}
}

func TestSetCapacityClampsNegative(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	s.SetCapacity(-10)
	if s.Capacity() != 0 {
		t.Errorf("expected 0, got %d", s.Capacity())
	}
	s.SetCapacity(120)
	if s.Capacity() != 120 {
		t.Errorf("overfill must be allowed, got %d", s.Capacity())
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := NewSessionState("Alex", "Aria")
	s.SetCapacity(42)
	s.SetSensation("tight")
	s.SetEmotion("excited")
	s.SetFlowVar("round", "3")
	s.SetDeviceState("plug1", ActuationOn)
	s.Append(NewChatMessage(SenderPlayer, "hello"))

	snap := s.Snapshot()

	restored := NewSessionState("Alex", "Aria")
	restored.Restore(snap)

	if restored.Capacity() != 42 || restored.Sensation() != "tight" || restored.Emotion() != "excited" {
		t.Errorf("scalar state not restored")
	}
	if v, _ := restored.FlowVar("round"); v != "3" {
		t.Errorf("flow vars not restored, got %q", v)
	}
	if restored.MessageCount() != 1 {
		t.Errorf("messages not restored, got %d", restored.MessageCount())
	}
	if restored.DeviceState("plug1") != ActuationUnknown {
		t.Error("device states must come back unknown after a restart")
	}
}

func TestCycleSettingsNormalize(t *testing.T) {
	got := CycleSettings{OnDuration: -1, OffInterval: 0, CycleCount: -3}.Normalize()
	if got.OnDuration != DefaultOnDuration {
		t.Errorf("expected default on duration, got %v", got.OnDuration)
	}
	if got.OffInterval != DefaultOffInterval {
		t.Errorf("expected default off interval, got %v", got.OffInterval)
	}
	if !got.Infinite() {
		t.Error("negative cycle count should normalize to unbounded")
	}
}

func TestSynthesizeDescriptor(t *testing.T) {
	d := SynthesizeDescriptor("mystery-plug")
	if d.Key != "mystery-plug" || d.Name != "mystery-plug" {
		t.Errorf("unexpected synthesized descriptor: %+v", d)
	}
}
