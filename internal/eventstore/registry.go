// Package eventstore routes SendGrid events to per-type durable stores.
//
// Known type tags map to dedicated tables; anything else lands in a single
// generic table that keeps the tag in a column. Tables are created lazily on
// first use, at most once per process, under a distributed lock so that
// several instances never race on the same DDL.
package eventstore

import (
	"fmt"
	"regexp"

	"github.com/ignite/mailevents/internal/domain"
)

const (
	tablePrefix  = "sendgrid_events_"
	genericStore = "generic"
)

var storeNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,40}$`)

// Store identifies one durable event collection.
type Store struct {
	Name    string // routing name, e.g. "open" or "blocked"
	Table   string // backing table
	Generic bool   // true for the catch-all store shared by unknown tags
}

// Registry maps event type tags to stores. It is immutable after construction.
type Registry struct {
	stores  map[string]Store
	order   []string
	generic Store
}

// DefaultStoreNames lists the SendGrid tags with a dedicated store. "blocked"
// receives bounces whose subtype is blocked; "delivered" and "spamreport" are
// listed so reads against them resolve even though ingestion never writes them.
func DefaultStoreNames() []string {
	return []string{
		domain.EventProcessed,
		domain.EventDropped,
		domain.EventDelivered,
		domain.EventDeferred,
		domain.EventBounce,
		domain.EventBlocked,
		domain.EventOpen,
		domain.EventClick,
		domain.EventSpamReport,
		domain.EventUnsubscribe,
		domain.EventGroupUnsubscribe,
		domain.EventGroupResubscribe,
	}
}

// NewRegistry builds a registry with a dedicated store for each name.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{
		stores:  make(map[string]Store, len(names)),
		generic: Store{Name: genericStore, Table: tablePrefix + genericStore, Generic: true},
	}
	for _, n := range names {
		if !storeNamePattern.MatchString(n) || n == genericStore {
			return nil, fmt.Errorf("invalid store name %q", n)
		}
		if _, dup := r.stores[n]; dup {
			continue
		}
		r.stores[n] = Store{Name: n, Table: tablePrefix + n}
		r.order = append(r.order, n)
	}
	return r, nil
}

// MustDefaultRegistry returns the registry for DefaultStoreNames.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultStoreNames()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve picks the store an event is written to.
func (r *Registry) Resolve(ev domain.Event) Store {
	if ev.IsBlockedBounce() {
		return r.Lookup(domain.EventBlocked)
	}
	return r.Lookup(ev.Type)
}

// Lookup returns the store for a type tag, falling back to the generic store.
func (r *Registry) Lookup(tag string) Store {
	if s, ok := r.stores[tag]; ok {
		return s
	}
	return r.generic
}

// All returns every store in registration order, generic store last.
func (r *Registry) All() []Store {
	out := make([]Store, 0, len(r.order)+1)
	for _, n := range r.order {
		out = append(out, r.stores[n])
	}
	return append(out, r.generic)
}
