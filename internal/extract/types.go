package extract

// CodeReference is a path:line citation found in a documentation file.
type CodeReference struct {
	// DocPath is the doc-root-relative path of the citing file.
	DocPath string `json:"docPath"`
	// Line and Column locate the citation in the doc file, 1-based.
	Line   int `json:"line"`
	Column int `json:"column"`
	// TargetPath is the cited source path, cleaned and slash-normalized.
	TargetPath string `json:"targetPath"`
	// StartLine and EndLine bound the cited range. EndLine equals
	// StartLine when no range was written.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
	// Anchor is the citing line with one line of context on each side,
	// newline-joined, clipped at file bounds.
	Anchor string `json:"anchor,omitempty"`
}

// ExtractionError reports a citation that was recognized but unusable,
// or a doc file that could not be scanned. These are findings, never
// fatal.
type ExtractionError struct {
	DocPath string `json:"docPath"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Raw     string `json:"raw,omitempty"`
	Reason  string `json:"reason"`
}

// Result holds everything extracted from one documentation file.
type Result struct {
	DocPath    string            `json:"docPath"`
	References []CodeReference   `json:"references,omitempty"`
	Errors     []ExtractionError `json:"errors,omitempty"`
}
