package sanitize

import "time"

// Config controls what the sanitizer strips and inlines.
type Config struct {
	// StripScripts removes script, noscript and iframe elements plus
	// event-handler and javascript: attributes.
	StripScripts bool `yaml:"strip_scripts"`
	// StripTrackers removes elements whose src or href matches a tracker
	// pattern, and resource-hint link elements.
	StripTrackers bool `yaml:"strip_trackers"`
	// InlineImages fetches img sources and rewrites them to archive locators.
	InlineImages bool `yaml:"inline_images"`
	// TrackerPatterns extends the built-in denylist. Substring match against
	// src and href values.
	TrackerPatterns []string `yaml:"tracker_patterns"`
	// FetchTimeout bounds each individual resource fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DefaultConfig strips everything and inlines images with a 10s per-resource
// budget.
func DefaultConfig() Config {
	return Config{
		StripScripts:  true,
		StripTrackers: true,
		InlineImages:  true,
		FetchTimeout:  10 * time.Second,
	}
}

// defaultTrackerPatterns covers the usual analytics and pixel hosts.
var defaultTrackerPatterns = []string{
	"googletagmanager.com",
	"google-analytics.com",
	"doubleclick.net",
	"connect.facebook.net",
	"facebook.com/tr",
	"cdn.segment.com",
	"static.hotjar.com",
	"script.hotjar.com",
	"analytics.tiktok.com",
	"snap.licdn.com",
	"clarity.ms",
	"scorecardresearch.com",
	"quantserve.com",
}
