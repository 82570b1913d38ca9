package fingerprint

import "math/rand"

// DeviceProfile describes one simulated handset.
type DeviceProfile struct {
	Manufacturer   string `json:"manufacturer"`
	Device         string `json:"device"`
	Model          string `json:"model"`
	AndroidVersion int    `json:"androidVersion"`
	AndroidRelease string `json:"androidRelease"`
	DPI            string `json:"dpi"`
	Resolution     string `json:"resolution"`
	CPU            string `json:"cpu"`
	AppVersion     string `json:"appVersion"`
	VersionCode    string `json:"versionCode"`
}

// deviceProfiles is the pool of realistic handsets a new profile draws from.
var deviceProfiles = []DeviceProfile{
	{Manufacturer: "samsung", Device: "SM-G973F", Model: "beyond1", AndroidVersion: 29, AndroidRelease: "10", DPI: "420dpi", Resolution: "1080x2280", CPU: "exynos9820", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "google", Device: "Pixel 4", Model: "flame", AndroidVersion: 30, AndroidRelease: "11", DPI: "560dpi", Resolution: "1080x2280", CPU: "msmnile", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "oneplus", Device: "GM1913", Model: "OnePlus7Pro", AndroidVersion: 29, AndroidRelease: "10", DPI: "560dpi", Resolution: "1440x3120", CPU: "msmnile", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "xiaomi", Device: "Mi 9", Model: "cepheus", AndroidVersion: 28, AndroidRelease: "9", DPI: "480dpi", Resolution: "1080x2340", CPU: "msmnile", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "samsung", Device: "SM-A505F", Model: "a50", AndroidVersion: 28, AndroidRelease: "9", DPI: "420dpi", Resolution: "1080x2340", CPU: "exynos9610", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "google", Device: "Pixel 3", Model: "blueline", AndroidVersion: 29, AndroidRelease: "10", DPI: "440dpi", Resolution: "1080x2160", CPU: "sdm845", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
	{Manufacturer: "samsung", Device: "SM-G975F", Model: "beyond2", AndroidVersion: 29, AndroidRelease: "10", DPI: "420dpi", Resolution: "1440x3040", CPU: "exynos9820", AppVersion: "269.0.0.18.75", VersionCode: "314665256"},
}

func randomDevice(rng *rand.Rand) DeviceProfile {
	return deviceProfiles[rng.Intn(len(deviceProfiles))]
}
