package robot

import (
	"testing"

	"github.com/spf13/afero"
)

func TestLoadConfigFs_Defaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "rover.json", []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFs(fs, "rover.json")
	if err != nil {
		t.Fatalf("LoadConfigFs: %v", err)
	}

	if cfg.Drive.Speed != 100 {
		t.Errorf("Speed = %v, want 100", cfg.Drive.Speed)
	}
	if cfg.Drive.BaudRate != 1_000_000 {
		t.Errorf("BaudRate = %d, want 1000000", cfg.Drive.BaudRate)
	}
	if cfg.Capture.Path != "capture.bin" {
		t.Errorf("Capture.Path = %q", cfg.Capture.Path)
	}
	if cfg.Remote.Addr != ":8080" {
		t.Errorf("Remote.Addr = %q", cfg.Remote.Addr)
	}
	if cfg.Calibration.Distance.Factor[5] != 1 {
		t.Errorf("default factor = %v, want identity", cfg.Calibration.Distance.Factor)
	}
	if !cfg.Drive.IsCalibrated() {
		t.Error("default wheels missing")
	}
}

func TestLoadConfigFs_Values(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := `{
		"drive": {"port": "/dev/ttyACM0", "speed": 40,
			"wheels": {"left": {"id": 5, "max_velocity": 600}, "right": {"id": 6, "drive_mode": 1}}},
		"calibration": {"distance": {"bias": [0.01, 0, 0, 0, 0, -0.02]}},
		"logLevel": "debug"
	}`
	if err := afero.WriteFile(fs, "rover.json", []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFs(fs, "rover.json")
	if err != nil {
		t.Fatalf("LoadConfigFs: %v", err)
	}

	if cfg.Drive.Port != "/dev/ttyACM0" || cfg.Drive.Speed != 40 {
		t.Errorf("drive = %+v", cfg.Drive)
	}
	if got := cfg.Drive.Wheels.MotorIDs(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("wheel IDs = %v, want [5 6]", got)
	}
	if cfg.Drive.Wheels[LeftWheel].MaxVelocity != 600 {
		t.Errorf("left wheel = %+v", cfg.Drive.Wheels[LeftWheel])
	}
	if cfg.Calibration.Distance.Bias[5] != -0.02 {
		t.Errorf("bias = %v", cfg.Calibration.Distance.Bias)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfigFs_SpeedClamped(t *testing.T) {
	for _, raw := range []string{`{"drive":{"speed":0}}`, `{"drive":{"speed":250}}`, `{"drive":{"speed":-3}}`} {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, "rover.json", []byte(raw), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfigFs(fs, "rover.json")
		if err != nil {
			t.Fatalf("LoadConfigFs(%s): %v", raw, err)
		}
		if cfg.Drive.Speed != 100 {
			t.Errorf("%s: Speed = %v, want 100", raw, cfg.Drive.Speed)
		}
	}
}

func TestLoadConfigFs_EnvOverride(t *testing.T) {
	t.Setenv("ROVER_REMOTE_ADDR", "127.0.0.1:9000")

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "rover.json", []byte(`{"remote":{"addr":":7000"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFs(fs, "rover.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Remote.Addr != "127.0.0.1:9000" {
		t.Errorf("Remote.Addr = %q, want env override", cfg.Remote.Addr)
	}
}

func TestLoadConfigFs_Missing(t *testing.T) {
	if _, err := LoadConfigFs(afero.NewMemMapFs(), "rover.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Drive.Port = "/dev/ttyUSB1"
	cfg.Sensors.Port = "/dev/ttyUSB2"

	if err := cfg.SaveFs(fs, "rover.json"); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfigFs(fs, "rover.json")
	if err != nil {
		t.Fatal(err)
	}
	if got.Drive.Port != "/dev/ttyUSB1" || got.Sensors.Port != "/dev/ttyUSB2" {
		t.Errorf("round trip lost ports: %+v", got)
	}
	if got.Drive.Wheels[RightWheel].DriveMode != 1 {
		t.Errorf("round trip lost wheels: %+v", got.Drive.Wheels)
	}
}
