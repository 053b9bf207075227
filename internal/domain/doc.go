// Package domain holds the value types shared by the webhook ingestion,
// reporting and short-link code: SendGrid events, per-domain aggregates,
// spam complaints and short links.
//
// Nothing here touches a database, an HTTP request or another internal
// package. Parsing and validation helpers that only look at their input
// (ParseEvents, ValidShortCode, ValidTargetURL) live next to their types.
package domain
