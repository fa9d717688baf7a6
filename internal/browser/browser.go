package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// launch starts the platform opener. Tests swap it out.
var launch = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// WebsiteURL turns a user's website field ("hildegard.org") into an
// absolute https URL. Values that already carry a scheme are validated as-is.
func WebsiteURL(site string) (string, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return "", errors.New("no website")
	}
	if !strings.Contains(site, "://") && !strings.Contains(site, ":") {
		site = "https://" + site
	}
	if err := validate(site); err != nil {
		return "", err
	}
	return site, nil
}

func validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return nil
}

func Open(rawURL string) error {
	if err := validate(rawURL); err != nil {
		return err
	}

	switch runtime.GOOS {
	case "darwin":
		return launch("open", rawURL)
	case "windows":
		// rundll32 avoids cmd /c start interpreting the URL
		return launch("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return launch("xdg-open", rawURL)
	}
}
