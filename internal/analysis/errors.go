package analysis

import "fmt"

// ParseError reports a file that could not be turned into a table.
type ParseError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.FileName, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a file extension the parser does not handle.
type UnsupportedFormatError struct {
	FileName  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q for %s (expected .csv, .json, .xlsx or .xls)", e.Extension, e.FileName)
}

// CleaningPreconditionError is returned by Clean when the input has not been
// analyzed.
type CleaningPreconditionError struct {
	FileName string
}

func (e *CleaningPreconditionError) Error() string {
	return fmt.Sprintf("clean %s: file must be analyzed before cleaning", e.FileName)
}
