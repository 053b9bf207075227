package domain

import "time"

// HostCategory names the mailbox provider bucket a blocked recipient falls in.
type HostCategory string

const (
	HostGmail   HostCategory = "Gmail"
	HostOutlook HostCategory = "Outlook"
	HostYahoo   HostCategory = "Yahoo"
	HostHotmail HostCategory = "Hotmail"
	HostICloud  HostCategory = "iCloud"
	HostOther   HostCategory = "otherDomain"
)

// AllHostCategories returns every category in classification order, with
// the fallback last.
func AllHostCategories() []HostCategory {
	return []HostCategory{HostGmail, HostOutlook, HostYahoo, HostHotmail, HostICloud, HostOther}
}

// MinReportGeneration is the lowest addressable report generation.
const MinReportGeneration = 2

// DomainAggregate holds the running counters for one sending domain within a
// report generation.
type DomainAggregate struct {
	Generation     int                    `json:"generation" db:"generation"`
	Domain         string                 `json:"domain" db:"domain"`
	DeliveredCount int64                  `json:"deliveredCount" db:"delivered_count"`
	BlockedCount   int64                  `json:"blockedCount" db:"blocked_count"`
	BlockedByHost  map[HostCategory]int64 `json:"blockedEmailHosts"`
	LastUpdated    time.Time              `json:"lastUpdated" db:"last_updated"`
}

// BlockedTotal sums the per-host breakdown. It equals BlockedCount for any
// aggregate written through the atomic increment path.
func (a DomainAggregate) BlockedTotal() int64 {
	var total int64
	for _, n := range a.BlockedByHost {
		total += n
	}
	return total
}

// NormalizeHosts fills every category with an explicit zero so responses
// always carry the full breakdown.
func (a *DomainAggregate) NormalizeHosts() {
	if a.BlockedByHost == nil {
		a.BlockedByHost = make(map[HostCategory]int64, len(AllHostCategories()))
	}
	for _, h := range AllHostCategories() {
		if _, ok := a.BlockedByHost[h]; !ok {
			a.BlockedByHost[h] = 0
		}
	}
}

// KnownDomain is a sending domain seen at least once in ingested events.
type KnownDomain struct {
	Domain    string    `json:"domain" db:"domain"`
	FirstSeen time.Time `json:"firstSeen" db:"first_seen"`
}
