// Package classify derives routing keys from SendGrid event fields: the
// sending domain from a message identifier and the mailbox provider bucket
// from a recipient address. Both functions are pure and never fail.
package classify

import (
	"strings"

	"github.com/ignite/mailevents/internal/domain"
)

// NotFound is returned by ExtractDomain when no domain can be derived.
const NotFound = "not found"

const mxLabel = "mx."

// ExtractDomain returns the origin domain encoded in an SMTP message id such
// as "<abc@sub.mx.example.com>". Angle brackets are dropped, the part after
// the last "@" is kept, and everything up to and including an "mx." label is
// stripped. Input without an "@" yields NotFound.
func ExtractDomain(messageID string) string {
	id := strings.TrimSpace(messageID)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")

	at := strings.LastIndex(id, "@")
	if at < 0 {
		return NotFound
	}
	host := strings.TrimSpace(id[at+1:])

	if strings.HasPrefix(strings.ToLower(host), mxLabel) {
		host = host[len(mxLabel):]
	} else if i := strings.Index(strings.ToLower(host), "."+mxLabel); i >= 0 {
		host = host[i+1+len(mxLabel):]
	}

	host = strings.Trim(host, ".")
	if host == "" {
		return NotFound
	}
	return host
}

var hostRules = []struct {
	needle   string
	category domain.HostCategory
}{
	{"gmail", domain.HostGmail},
	{"outlook", domain.HostOutlook},
	{"yahoo", domain.HostYahoo},
	{"hotmail", domain.HostHotmail},
	{"icloud", domain.HostICloud},
}

// ClassifyHost buckets a recipient address by mailbox provider. Matching is
// a case-insensitive substring test in a fixed order; the first hit wins.
func ClassifyHost(email string) domain.HostCategory {
	lower := strings.ToLower(email)
	if lower == "" {
		return domain.HostOther
	}
	for _, r := range hostRules {
		if strings.Contains(lower, r.needle) {
			return r.category
		}
	}
	return domain.HostOther
}
