package character

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	char, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if char.Name != Default().Name {
		t.Errorf("expected default character, got %q", char.Name)
	}

	char, err = Load("")
	if err != nil || char.Name != Default().Name {
		t.Errorf("empty path must yield the default, got %q err %v", char.Name, err)
	}
}

func TestLoadCharacterFile(t *testing.T) {
	path := writeFile(t, "char.yaml", `
name: Mistress Vera
persona: Stern but caring.
scenario: A private clinic after hours.
welcome: Greet [Player] coolly.
reminders:
  - text: Never rush the scene.
    constant: true
  - text: Tease about the gauge.
    enabled: false
`)
	char, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if char.Name != "Mistress Vera" {
		t.Errorf("name = %q", char.Name)
	}
	if char.Welcome != "Greet [Player] coolly." {
		t.Errorf("welcome = %q", char.Welcome)
	}
	active := char.ActiveReminders()
	if len(active) != 1 || active[0] != "Never rush the scene." {
		t.Errorf("active reminders = %v", active)
	}
}

func TestLoadRejectsMalformedAndNameless(t *testing.T) {
	malformed := writeFile(t, "bad.yaml", "name: [unclosed")
	if _, err := Load(malformed); err == nil {
		t.Error("malformed yaml must error")
	}

	nameless := writeFile(t, "anon.yaml", "persona: Someone.")
	if _, err := Load(nameless); err == nil {
		t.Error("a character without a name must error")
	}
}

func TestLoadDevices(t *testing.T) {
	path := writeFile(t, "devices.yaml", `
devices:
  - key: pump
    name: Air Pump
    brand: kasa
    address: 192.168.1.40
  - key: valve
    name: Relief Valve
    brand: wyze
`)
	devices, err := LoadDevices(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
	if devices[0].Key != "pump" || devices[0].Brand != "kasa" {
		t.Errorf("first device = %+v", devices[0])
	}
}

func TestLoadDevicesOptional(t *testing.T) {
	devices, err := LoadDevices("")
	if err != nil || devices != nil {
		t.Errorf("empty path must be a no-op, got %v err %v", devices, err)
	}
	devices, err = LoadDevices(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil || devices != nil {
		t.Errorf("missing file must be a no-op, got %v err %v", devices, err)
	}
}

func TestLoadDevicesRequiresKey(t *testing.T) {
	path := writeFile(t, "devices.yaml", `
devices:
  - name: Keyless Plug
`)
	if _, err := LoadDevices(path); err == nil {
		t.Error("a device without a key must error")
	}
}
