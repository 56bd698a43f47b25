// Package analysis turns uploaded client files into analyzed and cleaned
// tables.
//
// The package is organized as a chain of stage functions, each taking the
// previous snapshot and returning a new one:
//
//	Parse   -> *ParsedTable           (parse.go)
//	Analyze -> *FileAnalysisResult    (infer.go, detect.go)
//	Clean   -> *FileAnalysisResult    (clean.go, tables.go)
//
// No stage mutates its input. Lookup tables used by the cleaner (column
// synonyms, per-type defaults) live in tables.go so they can be tested and
// extended without touching the stage logic.
package analysis
