package domain

import "time"

// SpamComplaint is one spamreport event captured in the spam ledger.
type SpamComplaint struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Domain     string    `json:"domain,omitempty" db:"domain"`
	ReportedAt time.Time `json:"reportedAt" db:"reported_at"`
}
