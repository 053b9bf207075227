// Package ingest dispatches SendGrid webhook events to the spam ledger, the
// aggregate counters and the per-type event stores.
//
// Rules enforced by this package:
//   - spamreport events only reach the spam ledger, and only with an email
//   - delivered events bump the delivered counter and are not stored
//   - blocked bounces bump the blocked counter and land in the "blocked" store
//   - every other event lands in the store named after its type
//   - events in a batch run concurrently; one failure never cancels a sibling
package ingest
