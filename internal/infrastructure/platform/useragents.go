package platform

import "math/rand"

// mobileUserAgents mirrors current app builds across both handset families.
var mobileUserAgents = map[string][]string{
	"ios": {
		"Instagram 319.0.0.0.0 (iPhone15,2; iOS 17_1; en_US; en-US; scale=3.00; 1290x2796; 543123456)",
		"Instagram 319.0.0.0.0 (iPhone14,2; iOS 17_0; en_US; en-US; scale=3.00; 1170x2532; 542987654)",
		"Instagram 318.0.0.0.0 (iPhone15,1; iOS 17_2; en_US; en-US; scale=3.00; 1290x2796; 543234567)",
		"Instagram 319.0.0.0.0 (iPhone13,2; iOS 16_7; en_US; en-US; scale=3.00; 1170x2532; 541876543)",
		"Instagram 318.0.0.0.0 (iPhone14,3; iOS 17_0; en_US; en-US; scale=3.00; 1284x2778; 542345678)",
		"Instagram 319.0.0.0.0 (iPhone15,3; iOS 17_1; en_US; en-US; scale=3.00; 1290x2796; 543456789)",
		"Instagram 318.0.0.0.0 (iPhone13,1; iOS 16_6; en_US; en-US; scale=2.00; 750x1624; 540123456)",
		"Instagram 319.0.0.0.0 (iPhone14,1; iOS 17_0; en_US; en-US; scale=3.00; 1170x2532; 542654321)",
	},
	"android": {
		"Instagram 319.0.0.0.0 Android (33/13; 420dpi; 1080x2400; samsung; SM-S918B; dm3q; exynos2200; en_US; 543123456)",
		"Instagram 319.0.0.0.0 Android (33/13; 420dpi; 1080x2400; samsung; SM-S911B; o1s; exynos2200; en_US; 542987654)",
		"Instagram 318.0.0.0.0 Android (33/13; 420dpi; 1080x2400; samsung; SM-A546B; a54x; exynos1380; en_US; 543234567)",
		"Instagram 319.0.0.0.0 Android (33/13; 480dpi; 1440x3200; samsung; SM-S928B; dm4x; snapdragon; en_US; 543456789)",
		"Instagram 318.0.0.0.0 Android (33/13; 420dpi; 1080x2400; Google; Pixel 8 Pro; cheetah; cheetah; en_US; 542345678)",
		"Instagram 319.0.0.0.0 Android (33/13; 420dpi; 1080x2400; Google; Pixel 7; panther; panther; en_US; 541876543)",
		"Instagram 318.0.0.0.0 Android (33/13; 420dpi; 1080x2400; OnePlus; CPH2451; OP591BL1; taro; en_US; 542654321)",
		"Instagram 319.0.0.0.0 Android (33/13; 420dpi; 1080x2400; Xiaomi; 23013RK75G; corot; taro; en_US; 543567890)",
	},
}

// RandomUserAgent picks a device family and a user agent string from it.
func RandomUserAgent() (userAgent, deviceType string) {
	families := []string{"ios", "android"}
	deviceType = families[rand.Intn(len(families))]
	pool := mobileUserAgents[deviceType]
	return pool[rand.Intn(len(pool))], deviceType
}
