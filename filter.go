package ledgeridx

import (
	"net/url"
	"strings"
)

// ArweaveOnly is a metadata filter accepting only http(s) URIs hosted on
// arweave.
func ArweaveOnly(m *Metadata) bool {
	u, err := url.Parse(m.URI)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	return strings.Contains(m.URI, "arweave")
}
