package inference

import "strings"

// Suffix patterns common across first names. Coarse, used only as the lowest
// confidence signal.
var (
	femaleSuffixes = []string{"a", "ia", "ella", "ette", "ina", "elle", "anna", "sophia", "emma", "olivia"}
	maleSuffixes   = []string{"o", "er", "on", "en", "an", "el", "ian", "io"}
)

// GenderFromName guesses a gender from name suffix patterns. Returns
// "unknown" when no pattern matches.
func GenderFromName(fullName, firstName string) string {
	name := strings.ToLower(strings.TrimSpace(firstName))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(fullName))
	}
	if name == "" {
		return "unknown"
	}

	for _, suffix := range femaleSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > 3 {
			return "female"
		}
	}
	for _, suffix := range maleSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > 3 {
			return "male"
		}
	}
	return "unknown"
}

// FallbackFirstName derives a first name from a handle by splitting on the
// usual separator characters and title-casing the leading segment.
func FallbackFirstName(username string) string {
	name := username
	for _, sep := range []string{".", "_", "-"} {
		if i := strings.Index(name, sep); i >= 0 {
			name = name[:i]
		}
	}
	if name == "" {
		return username
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}
