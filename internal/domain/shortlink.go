package domain

import (
	"net/url"
	"regexp"
	"time"
)

// RedirectKeyPrefix prefixes every redirect object key in the bucket.
const RedirectKeyPrefix = "redirects_"

var shortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)

// ShortLink maps a short code to a redirect target. A row exists in the
// database only while the matching redirect object exists in object storage.
type ShortLink struct {
	ID          string    `json:"id" db:"id"`
	ShortCode   string    `json:"shortCode" db:"short_code"`
	TargetURL   string    `json:"targetURL" db:"target_url"`
	Title       string    `json:"title,omitempty" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	ClickCount  int64     `json:"clicks" db:"click_count"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// RedirectObjectKey returns the object storage key for a short code.
func RedirectObjectKey(code string) string {
	return RedirectKeyPrefix + code
}

// ValidShortCode reports whether code is 3-20 ASCII letters or digits.
func ValidShortCode(code string) bool {
	return shortCodePattern.MatchString(code)
}

// ValidTargetURL reports whether raw is an absolute http or https URL.
func ValidTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
