// Package shortlink manages redirect short links stored in two places: a
// redirect object in S3 (served through CloudFront) and a row in PostgreSQL.
//
// There is no transaction spanning both stores. Create writes the object
// first and deletes it again if the row cannot be inserted. Update rewrites
// the object and then the row with no compensation. Delete removes the row
// first and treats a failed object delete as a warning, since the database is
// authoritative for existence.
//
// The service layer depends on the interfaces in repository.go and never
// imports net/http or database/sql directly.
package shortlink
