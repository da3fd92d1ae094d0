package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyAllowsConfiguredOrigins(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080", "https://chat.example.com"})

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:8080", true},
		{"HTTP://LOCALHOST:8080", true}, // scheme and host are case-insensitive
		{"https://chat.example.com", true},
		{"https://evil.example.com", false},
		{"http://localhost:9999", false},
		{"", false},
		{"not a url", false},
	}

	for _, tc := range cases {
		if got := p.check(requestWithOrigin(tc.origin)); got != tc.allowed {
			t.Errorf("check(origin=%q) = %v, want %v", tc.origin, got, tc.allowed)
		}
	}
}

func TestOriginPolicyWildcardAllowsAnyValidOrigin(t *testing.T) {
	p := newOriginPolicy([]string{"*"})

	if !p.check(requestWithOrigin("https://anywhere.example")) {
		t.Error("Wildcard policy should allow any well-formed origin")
	}
	if p.check(requestWithOrigin("")) {
		t.Error("Wildcard policy should still reject a missing Origin header")
	}
}

func TestOriginPolicySkipsInvalidConfigEntries(t *testing.T) {
	p := newOriginPolicy([]string{"", "   ", "not a url", "http://ok.example"})

	if !p.check(requestWithOrigin("http://ok.example")) {
		t.Error("Valid entry should survive invalid neighbors")
	}
	if p.check(requestWithOrigin("http://other.example")) {
		t.Error("Invalid entries must not loosen the policy")
	}
}
