package model

import (
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile converts unicode hostnames to punycode without the strict
// STD3 rules, since real-world DNS data contains underscore labels
// (_dmarc, _spf) that the lookup profile rejects.
var hostProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(false))

const (
	maxHostLength  = 253
	maxLabelLength = 63
)

// NormalizeHost canonicalizes a hostname: trims whitespace and trailing
// dots, lowercases, strips a leading wildcard label, and converts unicode
// names to punycode. Returns ErrInvalidEventData if the result is not a
// syntactically valid hostname.
func NormalizeHost(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "*.")
	if host == "" {
		return "", ErrEmptyEventData
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidEventData, raw, err)
	}
	if !validHostname(ascii) {
		return "", fmt.Errorf("%w: %q is not a hostname", ErrInvalidEventData, raw)
	}
	return ascii, nil
}

// validHostname checks RFC 1035 shape, relaxed to allow underscores.
// The final label must not be purely numeric so that dotted quads are
// never mistaken for hostnames.
func validHostname(host string) bool {
	if len(host) > maxHostLength {
		return false
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > maxLabelLength {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, c := range label {
			isAlnum := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
			if !isAlnum && c != '-' && c != '_' {
				return false
			}
		}
	}
	return !isNumericLabel(labels[len(labels)-1])
}

// isNumericLabel reports whether a label consists solely of digits.
func isNumericLabel(label string) bool {
	for _, c := range label {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(label) > 0
}

// NormalizeIP canonicalizes an IP address string (compressed IPv6,
// no leading zeros).
func NormalizeIP(raw string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidEventData, raw, err)
	}
	return addr.Unmap().String(), nil
}

// NormalizeCIDR canonicalizes a CIDR range, masking any host bits so
// that 192.168.1.7/24 and 192.168.1.0/24 map to the same node.
func NormalizeCIDR(raw string) (string, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidEventData, raw, err)
	}
	return prefix.Masked().String(), nil
}

// NormalizeEmail canonicalizes an email address: lowercases both parts
// and normalizes the domain as a hostname.
func NormalizeEmail(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 {
		return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidEventData, raw)
	}
	local, domain := value[:at], value[at+1:]
	if strings.ContainsAny(local, " \t<>(),;:\"[]") {
		return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidEventData, raw)
	}
	host, err := NormalizeHost(domain)
	if err != nil {
		return "", err
	}
	return local + "@" + host, nil
}

// NormalizeURL canonicalizes a fetchable URL: lowercases the scheme and
// host, strips the fragment and default ports, and ensures a non-empty
// path. Only http and https URLs are accepted; everything else is module
// territory, not part of the core event model.
func NormalizeURL(raw string) (string, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q: %v", ErrInvalidEventData, raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEventData, u.Scheme)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("%w: %q has no host", ErrInvalidEventData, raw)
	}

	host := u.Hostname()
	if addr, perr := netip.ParseAddr(host); perr == nil {
		host = addr.Unmap().String()
		if addr.Is6() {
			host = "[" + host + "]"
		}
	} else {
		host, err = NormalizeHost(host)
		if err != nil {
			return "", nil, err
		}
	}
	if port := u.Port(); port != "" && port != defaultPort(u.Scheme) {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), u, nil
}

// defaultPort returns the implied port for a URL scheme.
func defaultPort(scheme string) string {
	if scheme == "https" {
		return "443"
	}
	return "80"
}

// URLPort returns the effective port of a parsed URL, falling back to
// the scheme default.
func URLPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

// URLPathDepth counts non-empty path segments of a parsed URL. The root
// path has depth zero; trailing slashes do not add a segment.
func URLPathDepth(u *url.URL) int {
	depth := 0
	for _, seg := range strings.Split(u.EscapedPath(), "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}

// URLExtension returns the lowercased extension of the last path
// segment, without the dot, or the empty string if there is none.
func URLExtension(u *url.URL) string {
	path := u.EscapedPath()
	last := path[strings.LastIndex(path, "/")+1:]
	dot := strings.LastIndex(last, ".")
	if dot < 0 || dot == len(last)-1 {
		return ""
	}
	return strings.ToLower(last[dot+1:])
}
