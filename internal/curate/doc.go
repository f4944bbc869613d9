// Package curate implements the sequence and taxonomy curation steps:
// culling, degapping, dereplication, length and taxon filters, taxonomy
// editing and merging, subsampling, orientation, segment extraction and
// summary statistics.
//
// Every step is a pure transformation over [domain.Sequence] slices and
// [domain.Taxonomy] tables. Reading and writing files is left to the caller.
package curate
