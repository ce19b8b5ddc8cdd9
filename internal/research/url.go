package research

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL standardizes a URL before visited-set membership tests and
// fetches. It lowercases the scheme and host, strips default ports, drops
// the fragment, and collapses repeated slashes in the path. The raw query is
// kept verbatim: some sites are query-order sensitive, so parameters are
// compared as provided. Only http and https URLs are accepted.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""

	// Clearing RawPath makes url.String re-encode from the decoded path,
	// which percent-decodes unreserved characters and re-encodes controls.
	u.Path = collapseSlashes(u.Path)
	u.RawPath = ""

	return u.String(), nil
}

func collapseSlashes(path string) string {
	if path == "" {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResolveLink resolves an anchor href against its page URL and normalizes
// the result. Fragment-only links and non-web schemes (mailto, javascript,
// data, tel) are rejected.
func ResolveLink(baseURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", fmt.Errorf("fragment-only link")
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "javascript:", "data:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", fmt.Errorf("non-web scheme in %q", href)
		}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return NormalizeURL(base.ResolveReference(ref).String())
}

// Host returns the lowercased hostname of a URL, without port. Empty on
// parse failure.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// RegistrableDomain returns the eTLD+1 for a URL's host, falling back to the
// host itself when the public suffix list cannot produce one (IPs,
// single-label hosts).
func RegistrableDomain(rawURL string) string {
	host := Host(rawURL)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
