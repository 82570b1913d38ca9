package fingerprint

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("NewChanneledLogger: %v", err)
	}
	return logger
}

func TestProfileForIsStable(t *testing.T) {
	p := NewProvider(t.TempDir(), quietLogger(t))

	first, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	if first.DeviceID == "" || first.AndroidID == "" || first.PhoneID == "" {
		t.Fatalf("profile missing identifiers: %+v", first)
	}
	if first.Device.Model == "" || first.Region.CountryCode == "" {
		t.Fatalf("profile missing device/region: %+v", first)
	}

	second, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor again: %v", err)
	}
	if second.DeviceID != first.DeviceID || second.PhoneID != first.PhoneID {
		t.Error("repeat lookup changed the profile")
	}
}

func TestProfileSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	logger := quietLogger(t)

	first, err := NewProvider(dir, logger).ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	// A fresh provider over the same directory must reload, not regenerate.
	second, err := NewProvider(dir, logger).ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor after restart: %v", err)
	}
	if second.DeviceID != first.DeviceID || second.AndroidID != first.AndroidID {
		t.Error("restart regenerated the fingerprint")
	}
}

func TestRotateRegenerates(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(dir, quietLogger(t))

	first, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	if err := p.Rotate("acct"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := os.Stat(p.profilePath("acct")); !os.IsNotExist(err) {
		t.Error("rotated profile file still exists")
	}

	next, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor after rotate: %v", err)
	}
	if next.PhoneID == first.PhoneID {
		t.Error("rotation kept the old phone id")
	}
}

func TestRotateUnknownAccount(t *testing.T) {
	p := NewProvider(t.TempDir(), quietLogger(t))
	if err := p.Rotate("never-seen"); err != nil {
		t.Errorf("Rotate of unknown account: %v", err)
	}
}

func TestDelayBeforeRanges(t *testing.T) {
	p := NewProvider(t.TempDir(), quietLogger(t))
	profile, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}

	for i := 0; i < 200; i++ {
		d := p.DelayBefore(profile, RequestDM)
		// Largest possible draw: 3s base + 5s distraction + 2s kind bump.
		if d < 500*time.Millisecond || d > 10*time.Second {
			t.Fatalf("DelayBefore out of range: %v", d)
		}
	}
	// DM delays carry an extra bump over the bare default floor.
	if d := p.DelayBefore(profile, RequestDM); d < time.Second {
		t.Errorf("DM delay %v below the minimum bump", d)
	}
}

func TestHeadersFor(t *testing.T) {
	p := NewProvider(t.TempDir(), quietLogger(t))
	profile, err := p.ProfileFor("acct")
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}

	headers := p.HeadersFor(profile)
	for _, key := range []string{
		"X-IG-Device-ID", "X-IG-Android-ID", "X-IG-Connection-Type",
		"X-IG-Bandwidth", "X-IG-Latency", "X-IG-Battery-Level",
		"X-IG-Country-Code", "X-IG-Locale", "X-IG-Language",
		"X-IG-Is-Charging", "X-IG-Dark-Mode",
	} {
		if headers[key] == "" {
			t.Errorf("header %s missing", key)
		}
	}
	if headers["X-IG-Device-ID"] != profile.DeviceID {
		t.Errorf("device id header = %q, want %q", headers["X-IG-Device-ID"], profile.DeviceID)
	}
	switch headers["X-IG-Connection-Type"] {
	case "WIFI", "4G", "5G":
	default:
		t.Errorf("connection type = %q", headers["X-IG-Connection-Type"])
	}
}
