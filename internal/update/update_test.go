package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withServer(t *testing.T, status int, body string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("unexpected Accept header %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	orig := ReleasesURL
	ReleasesURL = srv.URL
	t.Cleanup(func() { ReleasesURL = orig })
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		current string
		want    string
	}{
		{"newer release", http.StatusOK, `{"tag_name":"v1.2.0"}`, "v1.1.0", "1.2.0"},
		{"same version", http.StatusOK, `{"tag_name":"v1.1.0"}`, "1.1.0", ""},
		{"no tag", http.StatusOK, `{}`, "1.1.0", ""},
		{"server error", http.StatusInternalServerError, ``, "1.1.0", ""},
		{"bad json", http.StatusOK, `{`, "1.1.0", ""},
		{"older release", http.StatusOK, `{"tag_name":"v1.0.9"}`, "1.1.0", ""},
		{"minor beats patch", http.StatusOK, `{"tag_name":"v1.10.0"}`, "1.9.7", "1.10.0"},
		{"prerelease ignored", http.StatusOK, `{"tag_name":"v2.0.0-rc1","prerelease":true}`, "1.1.0", ""},
		{"build suffix on current", http.StatusOK, `{"tag_name":"v1.1.1"}`, "v1.1.0-dirty", "1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withServer(t, tt.status, tt.body)
			res := Check(context.Background(), tt.current)
			if tt.want == "" {
				if res != nil {
					t.Errorf("expected no update, got %+v", res)
				}
				return
			}
			if res == nil || res.LatestVersion != tt.want {
				t.Errorf("Check() = %+v, want %s", res, tt.want)
			}
		})
	}
}

func TestCheckSkipsDevBuilds(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()
	orig := ReleasesURL
	ReleasesURL = srv.URL
	defer func() { ReleasesURL = orig }()

	if res := Check(context.Background(), "dev"); res != nil {
		t.Errorf("expected nil for dev build, got %+v", res)
	}
	if called {
		t.Error("dev build should not hit the network")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want [3]int
		ok   bool
	}{
		{"v1.2.3", [3]int{1, 2, 3}, true},
		{"1.2", [3]int{1, 2, 0}, true},
		{"2.0.0+abc", [3]int{2, 0, 0}, true},
		{"dev", [3]int{}, false},
		{"", [3]int{}, false},
		{"1.2.3.4", [3]int{}, false},
	}
	for _, tt := range tests {
		got, ok := parseVersion(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseVersion(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
