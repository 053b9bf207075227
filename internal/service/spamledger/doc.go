// Package spamledger records spam complaints.
//
// The ledger is append-only: every spamreport event with an address adds a
// row, repeated complaints from the same address included. Spam reports never
// reach the per-type event stores or the domain aggregates.
package spamledger
