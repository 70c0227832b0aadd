package lcm

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"go.viam.com/lcmbridge/utils"
)

// DefaultURL is used when neither the caller nor LCM_DEFAULT_URL names a bus.
const DefaultURL = "udpm://239.255.76.67:7667?ttl=0"

// Provider names.
const (
	ProviderUDPM = "udpm"
	ProviderMemQ = "memq"
)

// URL is a parsed LCM URL of the form provider://network?options.
type URL struct {
	Provider string
	// Group and Port are the multicast destination of a udpm bus.
	Group net.IP
	Port  int
	// TTL is the multicast time to live; 0 keeps traffic on the local host.
	TTL int
	// RecvBufSize is the requested kernel receive buffer size, 0 for the system default.
	RecvBufSize int

	raw string
}

func (u *URL) String() string {
	return u.raw
}

// Addr returns the multicast destination of a udpm bus.
func (u *URL) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: u.Group, Port: u.Port}
}

// URLError is returned for an LCM URL that cannot be used.
type URLError struct {
	URL    string
	Reason string
}

// NewURLError returns a URLError.
func NewURLError(rawURL, format string, args ...interface{}) error {
	return &URLError{URL: rawURL, Reason: fmt.Sprintf(format, args...)}
}

func (e *URLError) Error() string {
	return fmt.Sprintf("invalid LCM URL %q: %s", e.URL, e.Reason)
}

// ResolveURL returns rawURL, or the LCM_DEFAULT_URL environment variable, or DefaultURL, in
// that order of preference.
func ResolveURL(rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	if env := os.Getenv(utils.LCMDefaultURLEnvVar); env != "" {
		return env
	}
	return DefaultURL
}

// ParseURL parses an LCM URL. The empty string resolves through ResolveURL.
func ParseURL(rawURL string) (*URL, error) {
	rawURL = ResolveURL(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewURLError(rawURL, "%v", err)
	}

	u := &URL{Provider: parsed.Scheme, raw: rawURL}
	switch u.Provider {
	case ProviderMemQ:
		return u, nil
	case ProviderUDPM:
	case "":
		return nil, NewURLError(rawURL, "missing provider")
	default:
		return nil, NewURLError(rawURL, "unsupported provider %q", u.Provider)
	}

	host, port, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return nil, NewURLError(rawURL, "network must be group:port")
	}
	u.Group = net.ParseIP(host)
	if u.Group == nil || u.Group.To4() == nil || !u.Group.IsMulticast() {
		return nil, NewURLError(rawURL, "%q is not an IPv4 multicast group", host)
	}
	if u.Port, err = strconv.Atoi(port); err != nil || u.Port <= 0 || u.Port > 65535 {
		return nil, NewURLError(rawURL, "bad port %q", port)
	}

	for key, values := range parsed.Query() {
		value := values[len(values)-1]
		switch key {
		case "ttl":
			if u.TTL, err = strconv.Atoi(value); err != nil || u.TTL < 0 || u.TTL > 255 {
				return nil, NewURLError(rawURL, "ttl must be in [0, 255], got %q", value)
			}
		case "recv_buf_size":
			if u.RecvBufSize, err = strconv.Atoi(value); err != nil || u.RecvBufSize < 0 {
				return nil, NewURLError(rawURL, "bad recv_buf_size %q", value)
			}
		default:
			return nil, NewURLError(rawURL, "unknown option %q", key)
		}
	}
	return u, nil
}
