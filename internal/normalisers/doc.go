// Package normalisers turns remote classroom text into the clean plain text
// that is hashed, chunked and embedded. Normalisation happens at the
// connector boundary so downstream components never see raw payloads.
package normalisers
