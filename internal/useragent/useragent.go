// Package useragent derives a coarse device/browser/OS classification from a
// User-Agent header. Classification is a pure function of the header string.
package useragent

import (
	"strings"

	"github.com/mssola/user_agent"
)

const Unknown = "unknown"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

type Classification struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Bot     bool   `json:"bot"`
}

type rule struct {
	needles []string
	label   string
}

// Order matters: the first matching rule wins. Chrome user agents also
// contain "Safari", and Edge ones contain both "Chrome" and "Safari".
var browserRules = []rule{
	{[]string{"chrome"}, "Chrome"},
	{[]string{"firefox"}, "Firefox"},
	{[]string{"safari"}, "Safari"},
	{[]string{"edge"}, "Edge"},
}

// Android agents carry "Linux" and iOS agents carry "like Mac OS X", so the
// mobile platforms are tested first.
var osRules = []rule{
	{[]string{"windows"}, "Windows"},
	{[]string{"android"}, "Android"},
	{[]string{"iphone", "ipad", "ios"}, "iOS"},
	{[]string{"mac"}, "macOS"},
	{[]string{"linux"}, "Linux"},
}

// Classify never fails; an empty or unrecognised header yields
// desktop/unknown/unknown.
func Classify(header string) Classification {
	ua := strings.ToLower(header)

	c := Classification{
		Device:  DeviceDesktop,
		Browser: firstMatch(ua, browserRules),
		OS:      firstMatch(ua, osRules),
	}
	if strings.Contains(ua, "mobile") {
		c.Device = DeviceMobile
	}
	if strings.Contains(ua, "tablet") {
		c.Device = DeviceTablet
	}
	if header != "" {
		c.Bot = IsBot(header)
	}
	return c
}

// IsBot reports crawler and synthetic-monitoring agents.
func IsBot(header string) bool {
	lower := strings.ToLower(header)
	if strings.Contains(lower, "pingdom") || strings.Contains(lower, "lighthouse") {
		return true
	}
	return user_agent.New(header).Bot()
}

func firstMatch(ua string, rules []rule) string {
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(ua, n) {
				return r.label
			}
		}
	}
	return Unknown
}
