// Package privacy scrubs sensitive material from text that leaves the
// process: camera stream and broker URLs with embedded credentials,
// push service URLs carrying tokens, and anything else an error
// message may drag along into telemetry or logs.
package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// urlPattern finds URLs in free text. The scheme set covers what
	// this system actually dials: HTTP webhooks, RTSP cameras, MQTT
	// brokers and websocket push services.
	urlPattern = regexp.MustCompile(`\b(?:https?|rtsp|tcp|ssl|mqtts?|wss?)://\S+`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage replaces every URL in a message with an anonymized
// form. Telemetry and push errors pass through here before leaving
// the process.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL reduces a URL to a stable hash that still tells the
// reader what kind of endpoint failed. Credentials and tokens never
// reach the output; the scheme, host category, port and path shape do,
// so two reports about the same endpoint hash identically.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string
	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}
	if host := parsedURL.Hostname(); host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}
	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	normalized := strings.Join(normalizedParts, ":")
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("url-%x", hash[:12])
}

// SanitizeBrokerURL strips credentials and path from a broker or
// stream URL, leaving scheme, host and port for log lines. Strings
// without a scheme come back unchanged.
func SanitizeBrokerURL(source string) string {
	schemeEnd := strings.Index(source, "://")
	if schemeEnd < 0 {
		return source
	}
	prefix := source[:schemeEnd+3]
	rest := source[schemeEnd+3:]

	// Userinfo ends at the last @ before the path.
	hostPart := rest
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPart = rest[:slash]
	}
	if at := strings.LastIndexByte(hostPart, '@'); at >= 0 {
		hostPart = hostPart[at+1:]
	}
	return prefix + hostPart
}

// GenerateSystemID creates the anonymous installation identifier
// attached to telemetry. 12 hex characters formatted XXXX-XXXX-XXXX,
// carrying nothing derived from the host.
func GenerateSystemID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	id := hex.EncodeToString(bytes)
	formatted := fmt.Sprintf("%s-%s-%s", id[0:4], id[4:8], id[8:12])
	return strings.ToUpper(formatted), nil
}

// IsValidSystemID checks the XXXX-XXXX-XXXX shape.
func IsValidSystemID(id string) bool {
	if len(id) != 14 {
		return false
	}
	if id[4] != '-' || id[9] != '-' {
		return false
	}
	for i, char := range id {
		if i == 4 || i == 9 {
			continue
		}
		if !isHexChar(char) {
			return false
		}
	}
	return true
}

// categorizeHost keeps the useful shape of a host without naming it.
func categorizeHost(host string) string {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return "localhost"
	}
	if isPrivateIP(host) {
		return "private-ip"
	}
	if isIPAddress(host) {
		return "public-ip"
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

// anonymizePath preserves the path structure while hashing segments
// that could be tokens or identifiers. Well-known endpoint words stay
// readable so a report still says what kind of path failed.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	segments := strings.Split(path, "/")
	anonymized := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		switch {
		case isCommonEndpointName(segment):
			anonymized = append(anonymized, "endpoint")
		case isNumeric(segment):
			anonymized = append(anonymized, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			anonymized = append(anonymized, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}
	return strings.Join(anonymized, "/")
}

func isPrivateIP(host string) bool {
	privateRanges := []string{
		"10.", "172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.", "172.22.", "172.23.",
		"172.24.", "172.25.", "172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"192.168.", "169.254.",
		"fc00:", "fd00:",
		"fe80:",
		"::1",
		"ff00:", "ff01:", "ff02:",
	}
	for _, prefix := range privateRanges {
		if strings.HasPrefix(strings.ToLower(host), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	if ipv4Pattern.MatchString(host) {
		return true
	}
	return strings.Contains(host, ":")
}

// isCommonEndpointName reports whether a path segment is one of the
// non-sensitive endpoint words this system's integrations use.
func isCommonEndpointName(segment string) bool {
	commonNames := []string{"hook", "webhook", "attendance", "api", "notify", "push", "stream", "camera"}
	segment = strings.ToLower(segment)
	for _, name := range commonNames {
		if strings.Contains(segment, name) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isHexChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}
