// Package postgres implements the service repositories and the event store
// backend against PostgreSQL using database/sql and lib/pq.
package postgres
