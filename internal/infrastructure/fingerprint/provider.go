// Package fingerprint generates and persists per-account device identities
// and produces human-like request timing and spoofed client metadata.
package fingerprint

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// RequestKind classifies an outbound request for delay shaping.
type RequestKind string

const (
	RequestDefault RequestKind = "default"
	RequestDM      RequestKind = "dm"
	RequestLogin   RequestKind = "login"
)

// Profile is the stable simulated device and region identity for one account.
// Created once, persisted, and reused until rotated.
type Profile struct {
	Username  string        `json:"username"`
	Device    DeviceProfile `json:"device"`
	Region    Region        `json:"region"`
	DeviceID  string        `json:"deviceId"`
	AndroidID string        `json:"androidId"`
	PhoneID   string        `json:"phoneId"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Provider owns fingerprint profiles and timing for all accounts.
type Provider struct {
	dir    string
	logger *logging.ChanneledLogger

	mu       sync.Mutex
	profiles map[string]*Profile
	rng      *rand.Rand
}

// NewProvider creates a provider persisting profiles under dir.
func NewProvider(dir string, logger *logging.ChanneledLogger) *Provider {
	return &Provider{
		dir:      dir,
		logger:   logger,
		profiles: make(map[string]*Profile),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Provider) profilePath(username string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s.fingerprint.json", username))
}

// ProfileFor returns the account's persisted profile, generating and
// persisting one on first call.
func (p *Provider) ProfileFor(username string) (*Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if profile, ok := p.profiles[username]; ok {
		return profile, nil
	}

	if data, err := os.ReadFile(p.profilePath(username)); err == nil {
		var profile Profile
		if err := json.Unmarshal(data, &profile); err == nil && profile.DeviceID != "" {
			p.profiles[username] = &profile
			return &profile, nil
		}
	}

	profile := p.generate(username)
	if err := p.persist(profile); err != nil {
		return nil, fmt.Errorf("failed to persist fingerprint for %s: %w", username, err)
	}
	p.profiles[username] = profile
	p.logger.Auth().Info("Generated device fingerprint",
		"account", username,
		"device", profile.Device.Device,
		"country", profile.Region.CountryCode)
	return profile, nil
}

// Rotate discards the account's persisted profile and identifiers. The next
// ProfileFor call regenerates from scratch.
func (p *Provider) Rotate(username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.profiles, username)
	if err := os.Remove(p.profilePath(username)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove fingerprint for %s: %w", username, err)
	}
	p.logger.Auth().Warn("Rotated device fingerprint", "account", username)
	return nil
}

func (p *Provider) generate(username string) *Profile {
	device := randomDevice(p.rng)
	region := randomRegion(p.rng)
	now := time.Now()

	deviceEntropy := fmt.Sprintf("%s%s%d%s", device.Manufacturer, device.Model, now.Unix(), uuid.NewString())
	androidEntropy := fmt.Sprintf("%s%s%s%d", device.Manufacturer, device.Device, device.Model, now.Unix())

	return &Profile{
		Username:  username,
		Device:    device,
		Region:    region,
		DeviceID:  shortHash(deviceEntropy),
		AndroidID: shortHash(androidEntropy),
		PhoneID:   uuid.NewString(),
		CreatedAt: now,
	}
}

func (p *Provider) persist(profile *Profile) error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.profilePath(profile.Username), data, 0600)
}

func shortHash(entropy string) string {
	sum := md5.Sum([]byte(entropy))
	return fmt.Sprintf("%x", sum)[:16]
}

// DelayBefore draws a human-like delay conditioned on the profile's local
// hour-of-day and the request kind. Roughly 15% of draws carry an extra
// multi-second distraction tail.
func (p *Provider) DelayBefore(profile *Profile, kind RequestKind) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	hour := profile.Region.localTime(time.Now()).Hour()

	var base float64
	switch {
	case hour < 6:
		base = p.uniform(1.5, 3.0)
	case hour < 12:
		base = p.uniform(0.8, 2.0)
	case hour < 18:
		base = p.uniform(0.5, 1.5)
	default:
		base = p.uniform(1.0, 2.5)
	}

	if p.rng.Float64() < 0.15 {
		base += p.uniform(2.0, 5.0)
	}

	switch kind {
	case RequestDM:
		base += p.uniform(0.5, 1.5)
	case RequestLogin:
		base += p.uniform(1.0, 2.0)
	}

	return time.Duration(base * float64(time.Second))
}

func (p *Provider) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}

// BatteryLevel returns a realistic battery percentage for the profile's
// local time of day.
func (p *Provider) BatteryLevel(profile *Profile) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batteryLevelLocked(profile)
}

func (p *Provider) batteryLevelLocked(profile *Profile) int {
	hour := profile.Region.localTime(time.Now()).Hour()
	switch {
	case hour < 6:
		return 85 + p.rng.Intn(16)
	case hour < 12:
		return 70 + p.rng.Intn(26)
	case hour < 18:
		return 40 + p.rng.Intn(41)
	default:
		return 20 + p.rng.Intn(41)
	}
}

func (p *Provider) chargingLocked(profile *Profile, battery int) bool {
	hour := profile.Region.localTime(time.Now()).Hour()
	if battery < 30 {
		return p.rng.Float64() < 0.70
	}
	if hour < 6 {
		return p.rng.Float64() < 0.60
	}
	return p.rng.Float64() < 0.15
}

func (p *Provider) darkModeLocked(profile *Profile) bool {
	hour := profile.Region.localTime(time.Now()).Hour()
	if hour >= 18 || hour < 8 {
		return p.rng.Float64() < 0.67
	}
	return p.rng.Float64() < 0.33
}

type networkInfo struct {
	connectionType string
	bandwidthMbps  int
	latencyMs      int
}

func (p *Provider) networkLocked() networkInfo {
	pick := p.rng.Float64()
	switch {
	case pick < 0.70:
		return networkInfo{"wifi", 15 + p.rng.Intn(86), 1 + p.rng.Intn(15)}
	case pick < 0.95:
		return networkInfo{"4g", 5 + p.rng.Intn(46), 20 + p.rng.Intn(61)}
	default:
		return networkInfo{"5g", 50 + p.rng.Intn(251), 1 + p.rng.Intn(10)}
	}
}

// HeadersFor produces the spoofed client metadata headers attached to every
// platform request for this profile.
func (p *Provider) HeadersFor(profile *Profile) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	network := p.networkLocked()
	battery := p.batteryLevelLocked(profile)

	headers := map[string]string{
		"X-IG-Device-ID":       profile.DeviceID,
		"X-IG-Android-ID":      profile.AndroidID,
		"X-IG-Connection-Type": strings.ToUpper(network.connectionType),
		"X-IG-Bandwidth":       strconv.Itoa(network.bandwidthMbps),
		"X-IG-Latency":         strconv.Itoa(network.latencyMs),
		"X-IG-Battery-Level":   strconv.Itoa(battery),
		"X-IG-Country-Code":    profile.Region.CountryCode,
		"X-IG-Locale":          profile.Region.Locale,
		"X-IG-Language":        profile.Region.Language(),
	}
	if p.chargingLocked(profile, battery) {
		headers["X-IG-Is-Charging"] = "1"
	} else {
		headers["X-IG-Is-Charging"] = "0"
	}
	if p.darkModeLocked(profile) {
		headers["X-IG-Dark-Mode"] = "1"
	} else {
		headers["X-IG-Dark-Mode"] = "0"
	}
	return headers
}
