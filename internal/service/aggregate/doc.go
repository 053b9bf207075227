// Package aggregate maintains per-domain delivery counters.
//
// Every "delivered" event adds one to the domain's delivered count and every
// blocked bounce adds one to its blocked count plus the matching mailbox
// provider bucket. Counters are grouped by report generation; ingestion writes
// to one configured generation while reads and deletes address any
// registered generation.
//
// Increments are delegated to an atomic storage primitive. The service never
// reads a counter and writes it back, so concurrent batches cannot lose
// updates.
package aggregate
