package analysis

import "slices"

// Row maps a column name to its raw cell value.
type Row map[string]string

// clone returns a shallow copy of the row.
func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ParsedTable is the output of the parser: unique, order-preserving column
// names and one Row per data line. Every row carries exactly the column keys.
type ParsedTable struct {
	Columns []string
	Rows    []Row
}

// ColumnType is the inferred dominant type of a column.
type ColumnType string

const (
	TypeNumber ColumnType = "number"
	TypeEmail  ColumnType = "email"
	TypePhone  ColumnType = "phone"
	TypeDate   ColumnType = "date"
	TypeText   ColumnType = "text"
	TypeEmpty  ColumnType = "empty"
)

// ColumnTypeInfo is the inferred type plus the fraction of non-empty values
// that matched it.
type ColumnTypeInfo struct {
	Type       ColumnType `json:"type"`
	Confidence float64    `json:"confidence"`
}

// IssueType classifies a DataIssue.
type IssueType string

const (
	IssueMissingValue     IssueType = "missing_value"
	IssueWrongFormat      IssueType = "wrong_format"
	IssueDuplicate        IssueType = "duplicate"
	IssueInvalidCharacter IssueType = "invalid_character"
	IssueInconsistentType IssueType = "inconsistent_type"
)

// DataIssue is a single finding of the issue detector. Row is 1-based.
type DataIssue struct {
	Type        IssueType `json:"type"`
	Column      string    `json:"column"`
	Row         int       `json:"row"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	DuplicateOf int       `json:"duplicateOf,omitempty"`
}

// Fix describes one category of change applied by the cleaner.
type Fix struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// DataCleaningReport summarizes what Clean changed.
type DataCleaningReport struct {
	FixesApplied        []Fix `json:"fixesApplied"`
	DuplicatesRemoved   int   `json:"duplicatesRemoved"`
	MissingValuesFilled int   `json:"missingValuesFilled"`
	FormatConversions   int   `json:"formatConversions"`
	CleanedRows         int   `json:"cleanedRows"`
}

// FileAnalysisResult is the snapshot threaded through the pipeline.
//
// Invariants: TotalRows == len(Data) and ValidRows <= TotalRows. SourceRows
// is the row count the issues were detected on and survives cleaning.
type FileAnalysisResult struct {
	FileName         string                    `json:"fileName"`
	TotalRows        int                       `json:"totalRows"`
	SourceRows       int                       `json:"sourceRows"`
	ValidRows        int                       `json:"validRows"`
	Columns          []string                  `json:"columns"`
	DataTypes        map[string]ColumnTypeInfo `json:"dataTypes"`
	Issues           []DataIssue               `json:"issues"`
	Errors           []string                  `json:"errors"`
	IsWellStructured bool                      `json:"isWellStructured"`
	Data             []Row                     `json:"data"`
	IsAnalyzed       bool                      `json:"isAnalyzed"`
	IsCleaned        bool                      `json:"isCleaned"`
	CleaningReport   *DataCleaningReport       `json:"cleaningReport,omitempty"`
}

// CountIssues returns how many issues of the given type the result carries.
func (r *FileAnalysisResult) CountIssues(t IssueType) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Type == t {
			n++
		}
	}
	return n
}

// clone deep-copies the result so a stage can build its output without
// touching the caller's snapshot.
func (r *FileAnalysisResult) clone() *FileAnalysisResult {
	out := *r
	out.Columns = slices.Clone(r.Columns)
	out.Issues = slices.Clone(r.Issues)
	out.Errors = slices.Clone(r.Errors)

	out.DataTypes = make(map[string]ColumnTypeInfo, len(r.DataTypes))
	for k, v := range r.DataTypes {
		out.DataTypes[k] = v
	}

	out.Data = make([]Row, len(r.Data))
	for i, row := range r.Data {
		out.Data[i] = row.clone()
	}

	if r.CleaningReport != nil {
		rep := *r.CleaningReport
		rep.FixesApplied = slices.Clone(r.CleaningReport.FixesApplied)
		out.CleaningReport = &rep
	}
	return &out
}
