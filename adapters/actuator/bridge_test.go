package actuator

import (
	"testing"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

func TestArgvKasa(t *testing.T) {
	d := entities.DeviceDescriptor{Key: "pump", Brand: "kasa", Address: "192.168.1.40"}
	args, err := argv("/opt/kasa_api.py", "on", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"/opt/kasa_api.py", "on", "192.168.1.40"}
	assertArgs(t, args, want)

	d.ChildID = "02"
	args, err = argv("/opt/kasa_api.py", "off", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgs(t, args, []string{"/opt/kasa_api.py", "off", "192.168.1.40", "02"})
}

func TestArgvTapo(t *testing.T) {
	d := entities.DeviceDescriptor{Key: "valve", Brand: "tapo", Address: "192.168.1.41"}
	if _, err := argv("/opt/tapo-control.py", "on", d); err == nil {
		t.Error("tapo without credentials must error")
	}

	d.Email = "rig@example.com"
	d.Password = "hunter2"
	args, err := argv("/opt/tapo-control.py", "state", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgs(t, args, []string{"/opt/tapo-control.py", "state", "192.168.1.41", "rig@example.com", "hunter2"})
}

func TestArgvWyze(t *testing.T) {
	d := entities.DeviceDescriptor{Key: "plug", Brand: "wyze", Address: "ABCDEF123456"}
	if _, err := argv("/opt/wyze_api.py", "on", d); err == nil {
		t.Error("wyze without a token must error")
	}

	d.AccessToken = "tok"
	if _, err := argv("/opt/wyze_api.py", "on", d); err == nil {
		t.Error("wyze on/off without a model must error")
	}

	args, err := argv("/opt/wyze_api.py", "state", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgs(t, args, []string{"/opt/wyze_api.py", "state", "tok", "ABCDEF123456"})

	d.Model = "WLPP1"
	args, err = argv("/opt/wyze_api.py", "off", d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertArgs(t, args, []string{"/opt/wyze_api.py", "off", "tok", "ABCDEF123456", "WLPP1"})
}

func TestArgvRequiresAddress(t *testing.T) {
	d := entities.DeviceDescriptor{Key: "ghost", Brand: "kasa"}
	if _, err := argv("/opt/kasa_api.py", "on", d); err == nil {
		t.Error("a device without an address must error")
	}
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}
