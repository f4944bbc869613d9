package domain

import "errors"

// Domain errors represent error conditions in the rescript domain.
// These errors can be checked with errors.Is.
var (
	// ErrInvalidParameter is returned when an action parameter is out of range
	// or not one of the accepted choices.
	ErrInvalidParameter = errors.New("rescript: invalid parameter")

	// ErrNoRecords is returned when an operation produced or received no records.
	ErrNoRecords = errors.New("rescript: no records")

	// ErrIncompleteDownload is returned when fewer bytes arrived than announced.
	ErrIncompleteDownload = errors.New("rescript: file download incomplete")

	// ErrMissingTaxonomy is returned when a sequence id has no taxonomy row.
	ErrMissingTaxonomy = errors.New("rescript: missing taxonomy")

	// ErrNotFound is returned when a remote file does not exist.
	ErrNotFound = errors.New("rescript: not found")

	// ErrInvalidSequence is returned for residues outside the IUPAC alphabet.
	ErrInvalidSequence = errors.New("rescript: invalid sequence")
)
