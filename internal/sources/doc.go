// Package sources retrieves reference sequences and taxonomies from SILVA,
// NCBI GenBank, GTDB, UNITE and MIDORI2.
//
// Each source is a small client holding a [ports.Fetcher] and the base URL of
// the remote service. Files are downloaded into a caller-provided work
// directory and parsed into a [Dataset].
package sources
