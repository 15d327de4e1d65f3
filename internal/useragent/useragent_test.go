package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{"empty", "", DeviceDesktop, Unknown, Unknown},
		{"unrecognised", "curl/8.4.0", DeviceDesktop, Unknown, Unknown},
		{"android chrome", "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 (KHTML, like Gecko) Mobile Chrome/90", DeviceMobile, "Chrome", "Android"},
		{"windows chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", DeviceDesktop, "Chrome", "Windows"},
		{"windows edge reports chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0", DeviceDesktop, "Chrome", "Windows"},
		{"legacy edge reports chrome", "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0 Safari/537.36 Edge/18.17763", DeviceDesktop, "Chrome", "Windows"},
		{"mac safari", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15", DeviceDesktop, "Safari", "macOS"},
		{"linux firefox", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", DeviceDesktop, "Firefox", "Linux"},
		{"iphone safari", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1", DeviceMobile, "Safari", "iOS"},
		{"tablet wins over mobile", "Mozilla/5.0 (Linux; Android 13; Tablet) Mobile Firefox/120", DeviceTablet, "Firefox", "Android"},
		{"case insensitive", "MOZILLA (WINDOWS) FIREFOX MOBILE", DeviceMobile, "Firefox", "Windows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.ua)
			assert.Equal(t, tt.device, c.Device)
			assert.Equal(t, tt.browser, c.Browser)
			assert.Equal(t, tt.os, c.OS)
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	ua := "Mozilla/5.0 (Linux; Android 10) ... Chrome/90"
	assert.Equal(t, Classify(ua), Classify(ua))
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.True(t, IsBot("Pingdom.com_bot_version_1.4"))
	assert.False(t, IsBot("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"))
	assert.False(t, Classify("").Bot)
}
