package auth

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address without its port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// deviceLabel summarises a User-Agent as "<device> - <browser>".
func deviceLabel(userAgent string) string {
	ua := strings.ToLower(userAgent)
	return deviceType(ua) + " - " + browserName(ua)
}

func deviceType(ua string) string {
	switch {
	case strings.Contains(ua, "mobile"):
		return "Mobile"
	case strings.Contains(ua, "tablet"):
		return "Tablet"
	case containsAny(ua, "windows", "macintosh", "linux"):
		return "Desktop"
	default:
		return "Unknown"
	}
}

// Order matters: Chromium based browsers also advertise "safari" and Edge
// also advertises "chrome".
func browserName(ua string) string {
	switch {
	case strings.Contains(ua, "chrome") && !containsAny(ua, "chromium", "edg"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari") && !containsAny(ua, "chrome", "chromium"):
		return "Safari"
	case strings.Contains(ua, "edg"):
		return "Edge"
	case containsAny(ua, "opera", "opr"):
		return "Opera"
	case containsAny(ua, "msie", "trident"):
		return "Internet Explorer"
	default:
		return "Unknown"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
