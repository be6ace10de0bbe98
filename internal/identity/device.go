package identity

import "github.com/mssola/useragent"

// DeviceInfo is derived from the producer's User-Agent and attached to event
// params at enrichment time.
type DeviceInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

// ParseUserAgent extracts device info from a raw User-Agent header. An empty
// header yields a zero DeviceInfo.
func ParseUserAgent(raw string) DeviceInfo {
	if raw == "" {
		return DeviceInfo{}
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	return DeviceInfo{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}

// Params renders the device info as event parameters. Zero fields are left
// out so plain envelopes stay compact.
func (d DeviceInfo) Params() map[string]any {
	params := make(map[string]any, 4)
	if d.Browser != "" {
		params["device_browser"] = d.Browser
	}
	if d.BrowserVersion != "" {
		params["device_browser_version"] = d.BrowserVersion
	}
	if d.OS != "" {
		params["device_os"] = d.OS
	}
	if d.Mobile {
		params["device_mobile"] = true
	}
	return params
}
