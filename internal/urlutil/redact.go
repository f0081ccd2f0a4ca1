// Package urlutil holds URL helpers shared by the probe and reporting paths.
package urlutil

import (
	"net/url"
)

// Redact strips the query string from rawURL and masks any password in its
// userinfo, so credentials never reach logs or metrics. Input that does not
// parse is returned unchanged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.RawQuery = ""
	u.ForceQuery = false

	return u.Redacted()
}
