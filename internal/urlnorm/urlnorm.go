// Package urlnorm canonicalises URLs for use as the primary dedup key.
package urlnorm

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidURL is returned for input that is not a parseable http(s) URL.
var ErrInvalidURL = errors.New("urlnorm: invalid URL")

// defaultRemoveParams is the default set of tracking query parameters stripped
// during normalisation. Grounded on a deduplication engine's tracking-param
// list, extended with a few additional analytics-click identifiers.
var defaultRemoveParams = map[string]bool{
	"ref": true, "source": true, "via": true,
	"fbclid": true, "gclid": true, "msclkid": true, "yclid": true,
	"mc_cid": true, "mc_eid": true, "_ga": true, "_gl": true,
}

var utmPrefix = "utm_"

var multiSlash = regexp.MustCompile(`/{2,}`)

// Options configures normalisation behaviour.
type Options struct {
	RemoveParams          map[string]bool // additional params to strip, merged with the defaults
	StripTrailingSlash    bool            // strip a trailing "/" except on the bare root
}

// DefaultOptions returns the default normalisation behaviour.
func DefaultOptions() Options {
	return Options{StripTrailingSlash: true}
}

func shouldRemove(name string, opts Options) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, utmPrefix) {
		return true
	}
	if defaultRemoveParams[lower] {
		return true
	}
	if opts.RemoveParams != nil && opts.RemoveParams[lower] {
		return true
	}
	return false
}

// Normalize canonicalises rawURL: scheme upgrade, host lowercasing,
// www-stripping, tracking-param removal, param sorting, fragment drop,
// slash collapsing, path re-encoding, and optional trailing-slash stripping.
func Normalize(rawURL string, opts Options) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	u.Scheme = "https"

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	u.Host = host

	q := u.Query()
	for name := range q {
		if shouldRemove(name, opts) {
			q.Del(name)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		for _, v := range q[k] {
			values.Add(k, v)
		}
	}

	u.Fragment = ""

	path := multiSlash.ReplaceAllString(u.Path, "/")
	path = reencodePath(path)
	if opts.StripTrailingSlash && path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	// path is already percent-encoded: keep it as RawPath so String() does not
	// escape its '%' signs a second time.
	u.RawPath = path
	if decoded, err := url.PathUnescape(path); err == nil {
		u.Path = decoded
	} else {
		u.Path = path
	}

	if len(values) == 0 {
		u.RawQuery = ""
	} else {
		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

// reencodePath percent-decodes then canonically re-encodes each path segment.
func reencodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			continue
		}
		segments[i] = (&url.URL{Path: decoded}).EscapedPath()
	}
	return strings.Join(segments, "/")
}

// ExtractDomain returns the lowercase host of rawURL, minus a leading "www.".
func ExtractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www."), nil
}

// IsSameDomain reports whether a and b share a normalised domain.
func IsSameDomain(a, b string) bool {
	da, err1 := ExtractDomain(a)
	db, err2 := ExtractDomain(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return da == db
}

// IsValidURL reports whether rawURL is a parseable http(s) URL.
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
