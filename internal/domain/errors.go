package domain

import "errors"

// Error taxonomy for the parsing pipeline. Only ErrParseFailure aborts a
// request; everything else is recorded as a string in the result's error
// list and never stops sibling pages or later steps.
var (
	// ErrParseFailure means the document cannot be opened or read at all.
	ErrParseFailure = errors.New("document cannot be parsed")
	// ErrExtractionFailure means a page yielded no usable table via any strategy.
	ErrExtractionFailure = errors.New("no table detected")
	// ErrConsistency means quantity x unit price disagrees with the line total.
	ErrConsistency = errors.New("price calculation mismatch")
	// ErrOCRMismatch means a product code is absent from the page's raw text.
	ErrOCRMismatch = errors.New("product code not found in raw text")
	// ErrChecksumMismatch means line totals disagree with the declared total.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
