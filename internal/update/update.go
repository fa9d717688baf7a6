// Package update asks GitHub whether a newer postview release exists.
package update

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ReleasesURL is the GitHub endpoint for the latest postview release.
var ReleasesURL = "https://api.github.com/repos/matheuskafuri/postview/releases/latest"

const checkTimeout = 5 * time.Second

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
}

type release struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// Check reports a release strictly newer than currentVersion. Any failure,
// a development build or a prerelease yields nil.
func Check(ctx context.Context, currentVersion string) *Result {
	current, ok := parseVersion(currentVersion)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleasesURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "postview/"+strings.TrimPrefix(currentVersion, "v"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var rel release
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rel); err != nil {
		return nil
	}
	if rel.Prerelease {
		return nil
	}
	latest, ok := parseVersion(rel.TagName)
	if !ok || !newer(latest, current) {
		return nil
	}
	return &Result{LatestVersion: strings.TrimPrefix(rel.TagName, "v")}
}

// parseVersion reads "v1.2.3" or "1.2" into major/minor/patch. Build suffixes
// after '-' or '+' are ignored.
func parseVersion(s string) ([3]int, bool) {
	var v [3]int
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if s == "" || len(parts) > 3 {
		return v, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, false
		}
		v[i] = n
	}
	return v, true
}

func newer(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
