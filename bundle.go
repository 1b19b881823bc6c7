package beacon

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

// Platform describes the host the client runs on. Hosts that parse a
// user agent fill it from their parser; the default describes the Go
// runtime.
type Platform struct {
	OS             string
	OSVersion      string
	Browser        string
	BrowserVersion string
	DeviceType     string
	DeviceFamily   string
}

// DefaultPlatform describes the current Go process.
func DefaultPlatform() Platform {
	return Platform{
		OS:             runtime.GOOS,
		Browser:        "go",
		BrowserVersion: strings.TrimPrefix(runtime.Version(), "go"),
		DeviceType:     "server",
		DeviceFamily:   runtime.GOARCH,
	}
}

// bundle is the JSON body of one delivery.
type bundle struct {
	APIKey       string `json:"api_key"`
	AppVer       string `json:"app_ver"`
	DeviceTag    string `json:"device_tag"`
	UserTag      string `json:"user_tag,omitempty"`
	OS           string `json:"os"`
	OSVer        string `json:"os_ver"`
	Browser      string `json:"browser"`
	BrowserVer   string `json:"browser_ver"`
	DeviceType   string `json:"device_type"`
	DeviceFamily string `json:"device_family"`
	Events       any    `json:"events"`
}

// envelope fills the bundle header from the client's current identity.
func (c *Client) envelope(records any) bundle {
	p := c.cfg.Platform
	return bundle{
		APIKey:       c.cfg.APIKey,
		AppVer:       c.cfg.AppVersion,
		DeviceTag:    c.identity.DeviceTag(),
		UserTag:      c.identity.UserTag(),
		OS:           p.OS,
		OSVer:        p.OSVersion,
		Browser:      p.Browser,
		BrowserVer:   p.BrowserVersion,
		DeviceType:   p.DeviceType,
		DeviceFamily: p.DeviceFamily,
		Events:       records,
	}
}

// baseURL prefers the persisted override over the configured URL.
func (c *Client) baseURL() string {
	if u := c.identity.baseURL(); u != "" {
		return strings.TrimRight(u, "/")
	}
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

// trackURL is the event endpoint.
// Format: {base}/{org}/1/track?current_time=<ISO8601>
func (c *Client) trackURL(now time.Time) string {
	return fmt.Sprintf("%s/%s/1/track?current_time=%s",
		c.baseURL(), url.PathEscape(c.cfg.OrgName), url.QueryEscape(now.UTC().Format(datetimeLayout)))
}

// appLogURL is the log endpoint.
// Format: {base}/{org}/1/app_log
func (c *Client) appLogURL() string {
	return fmt.Sprintf("%s/%s/1/app_log", c.baseURL(), url.PathEscape(c.cfg.OrgName))
}
