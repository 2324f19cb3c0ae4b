package httputil

import (
	"net/http"
	"testing"
)

// TestClientIP verifies header precedence, validation and the RemoteAddr
// fallback with and without a trusted proxy.
func TestClientIP(t *testing.T) {
	const remote = "10.0.0.1:1234"
	tests := []struct {
		name   string
		trust  bool
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"remote with port", false, "192.168.1.1:12345", "", "", "192.168.1.1"},
		{"remote IPv6", false, "[::1]:12345", "", "", "::1"},
		{"remote without port", false, "192.168.1.1", "", "", "192.168.1.1"},
		{"headers ignored when untrusted", false, remote, "1.2.3.4", "5.6.7.8", "10.0.0.1"},

		{"first forwarded hop", true, remote, "1.2.3.4, 10.0.0.1, 10.0.0.2", "", "1.2.3.4"},
		{"forwarded beats real IP", true, remote, "1.2.3.4", "5.6.7.8", "1.2.3.4"},
		{"forwarded with port", true, remote, "1.2.3.4:5678", "", "1.2.3.4"},
		{"forwarded IPv6", true, remote, "2001:db8::1", "", "2001:db8::1"},
		{"real IP alone", true, remote, "", "5.6.7.8", "5.6.7.8"},
		{"bad forwarded falls to real IP", true, remote, "unknown", "5.6.7.8", "5.6.7.8"},
		{"bad headers fall to remote", true, remote, "not-an-ip", "also bad", "10.0.0.1"},
		{"no headers", true, remote, "", "", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remote, Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, tt.trust); got != tt.want {
				t.Errorf("ClientIP(trust=%v) = %q, want %q", tt.trust, got, tt.want)
			}
		})
	}
}
