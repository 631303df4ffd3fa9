// Package browser holds the chromedp allocator flags shared by login, page
// capture and the fingerprint audit.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a realistic desktop Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Viewport of every browser we start; media grid layout depends on it
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// Options returns allocator options for a browser that X does not flag as
// automated. extra is appended last and wins on conflicts.
func Options(headless bool, extra ...chromedp.ExecAllocatorOption) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+len(stealthFlags)+len(extra)+4)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", headless),
		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
	)
	opts = append(opts, stealthFlags...)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return append(opts, extra...)
}

// CaptureOptions are Options for snapshotting a post: muted, and with
// autoplay held back so the snapshot shows video posters rather than frames
func CaptureOptions(headless bool) []chromedp.ExecAllocatorOption {
	return Options(headless,
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("autoplay-policy", "user-gesture-required"),
	)
}

var stealthFlags = []chromedp.ExecAllocatorOption{
	// navigator.webdriver is what X checks first
	chromedp.Flag("disable-blink-features", "AutomationControlled"),

	chromedp.Flag("disable-extensions", true),
	chromedp.Flag("disable-default-apps", true),
	chromedp.Flag("disable-infobars", true),
	chromedp.Flag("no-first-run", true),
	chromedp.Flag("no-default-browser-check", true),
}
