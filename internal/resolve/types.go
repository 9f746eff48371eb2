package resolve

import "docsync/internal/extract"

// Kind classifies a resolution outcome.
type Kind string

const (
	// Verified means the citation holds at the cited line.
	Verified Kind = "verified"
	// Drifted means the anchored text was found at another line.
	Drifted Kind = "drifted"
	// Missing means the target file or the anchored text is gone.
	Missing Kind = "missing"
	// SourceUnreadable means the target exists but cannot be read.
	SourceUnreadable Kind = "source_unreadable"
)

// Outcome is the result of resolving one reference.
type Outcome struct {
	Kind Kind `json:"kind"`
	// ResolvedPath is the canonical tree path of the cited file, set
	// whenever the citation identified a unique file.
	ResolvedPath string `json:"resolvedPath,omitempty"`
	// SuggestedLine is the new location for drifted references.
	SuggestedLine int `json:"suggestedLine,omitempty"`
	// Confidence: 1.0 exact match at the cited line, 0.9 unique window
	// match, 0.5 ambiguous window match.
	Confidence float64 `json:"confidence,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// ResolvedReference pairs a reference with its outcome.
type ResolvedReference struct {
	Ref     extract.CodeReference `json:"reference"`
	Outcome Outcome               `json:"outcome"`
}
