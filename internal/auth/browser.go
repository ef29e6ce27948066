package auth

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserLauncher starts the launch command. Replaceable in tests so no real
// browser opens.
var browserLauncher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenBrowser opens the URL in the system default browser on Linux, macOS,
// and Windows. Only http and https URLs are accepted; the URL ends up in a
// shell-adjacent command on some platforms, so anything else is rejected. A
// failure is not fatal to the flow: the caller prints the URL so the user can
// open it manually.
func OpenBrowser(rawURL string) error {
	if rawURL == "" {
		return &BrowserLaunchError{Err: fmt.Errorf("URL cannot be empty")}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &BrowserLaunchError{Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &BrowserLaunchError{Err: fmt.Errorf("invalid URL scheme %q", parsed.Scheme)}
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", rawURL)
	default:
		return &BrowserLaunchError{Err: fmt.Errorf("unsupported platform: %s", runtime.GOOS)}
	}

	// Start without waiting; the browser outlives this process's interest.
	if err := browserLauncher(cmd); err != nil {
		return &BrowserLaunchError{Err: err}
	}

	return nil
}
