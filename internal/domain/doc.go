// Package domain contains the core entities and value objects for rescript.
//
// This package has no dependencies on infrastructure concerns (HTTP, file
// system, logging) and contains only the rules for reference sequences and
// taxonomies.
//
// # Entities
//
//   - [Sequence]: a single reference sequence (id and residues)
//   - [Taxonomy]: an ordered feature id to lineage mapping
//   - [RankHandles]: per-rank label prefixes such as "d__" or "k__"
//   - [Run] and [Download]: records kept in the run catalog
package domain
