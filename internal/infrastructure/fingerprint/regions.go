package fingerprint

import (
	"math/rand"
	"strings"
	"time"
)

// Region describes a simulated geographic identity.
type Region struct {
	CountryCode string  `json:"countryCode"`
	Timezone    string  `json:"timezone"`
	Locale      string  `json:"locale"`
	Weight      float64 `json:"-"`
}

// Language returns the language component of the region's locale.
func (r Region) Language() string {
	if i := strings.Index(r.Locale, "_"); i > 0 {
		return r.Locale[:i]
	}
	if r.Locale != "" {
		return r.Locale
	}
	return "en"
}

// DialCode returns the international dialing prefix for the region.
func (r Region) DialCode() int {
	switch r.CountryCode {
	case "GB":
		return 44
	case "DE":
		return 49
	case "FR":
		return 33
	case "AU":
		return 61
	default:
		return 1
	}
}

// geographicRegions is weighted toward English-speaking markets.
var geographicRegions = []Region{
	{CountryCode: "US", Timezone: "America/New_York", Locale: "en_US", Weight: 0.40},
	{CountryCode: "GB", Timezone: "Europe/London", Locale: "en_GB", Weight: 0.15},
	{CountryCode: "DE", Timezone: "Europe/Berlin", Locale: "de_DE", Weight: 0.15},
	{CountryCode: "FR", Timezone: "Europe/Paris", Locale: "fr_FR", Weight: 0.10},
	{CountryCode: "CA", Timezone: "America/Toronto", Locale: "en_CA", Weight: 0.10},
	{CountryCode: "AU", Timezone: "Australia/Sydney", Locale: "en_AU", Weight: 0.10},
}

func randomRegion(rng *rand.Rand) Region {
	total := 0.0
	for _, r := range geographicRegions {
		total += r.Weight
	}
	pick := rng.Float64() * total
	for _, r := range geographicRegions {
		pick -= r.Weight
		if pick <= 0 {
			return r
		}
	}
	return geographicRegions[0]
}

// localTime returns the current wall clock time in the region's timezone,
// falling back to UTC when the zone database is unavailable.
func (r Region) localTime(now time.Time) time.Time {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return now.UTC()
	}
	return now.In(loc)
}

// TimezoneOffset returns the region's current UTC offset in seconds.
func (r Region) TimezoneOffset(now time.Time) int {
	_, offset := r.localTime(now).Zone()
	return offset
}
