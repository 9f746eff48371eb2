package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates the configuration file could not be parsed or validated
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// SourceRootMissing indicates the source root does not exist or is not a directory
	SourceRootMissing ErrorCode = "SOURCE_ROOT_MISSING"
	// DocRootMissing indicates the documentation root does not exist or is not a directory
	DocRootMissing ErrorCode = "DOC_ROOT_MISSING"
	// WhitelistUnreadable indicates the mirror whitelist file exists but cannot be read
	WhitelistUnreadable ErrorCode = "WHITELIST_UNREADABLE"
	// DocmapInvalid indicates DOCMAP.toml exists but cannot be decoded
	DocmapInvalid ErrorCode = "DOCMAP_INVALID"
	// CacheUnavailable indicates the scan cache database cannot be opened
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// LedgerUnsupported indicates the ledger file has a schema version newer than this build
	LedgerUnsupported ErrorCode = "LEDGER_UNSUPPORTED"
	// LedgerLocked indicates another process holds the ledger lock
	LedgerLocked ErrorCode = "LEDGER_LOCKED"
	// ArtifactWriteFailed indicates a navigation or report artifact could not be written
	ArtifactWriteFailed ErrorCode = "ARTIFACT_WRITE_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// EditFile suggests editing a file by hand
	EditFile FixActionType = "edit-file"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Path        string        `json:"path,omitempty"`
}

// Drilldown represents a suggested follow-up command
type Drilldown struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// SyncError represents a docsync error with code, message, and suggestions
type SyncError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	Drilldowns     []Drilldown `json:"drilldowns,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewSyncError creates a new SyncError
func NewSyncError(code ErrorCode, message string, cause error, suggestedFixes []FixAction, drilldowns []Drilldown) *SyncError {
	return &SyncError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
		Drilldowns:     drilldowns,
	}
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *SyncError) WithDetails(details interface{}) *SyncError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "docsync doctor",
			Safe:        true,
			Description: "Check configuration and state directory health",
		},
	},
	SourceRootMissing: {
		{
			Type:        RunCommand,
			Command:     "docsync init --source <dir> --docs <dir>",
			Safe:        true,
			Description: "Record the source and documentation roots",
		},
	},
	DocRootMissing: {
		{
			Type:        RunCommand,
			Command:     "docsync init --source <dir> --docs <dir>",
			Safe:        true,
			Description: "Record the source and documentation roots",
		},
	},
	WhitelistUnreadable: {
		{
			Type:        EditFile,
			Path:        ".docsync/whitelist",
			Description: "Fix permissions or remove the unreadable whitelist file",
		},
	},
	DocmapInvalid: {
		{
			Type:        RunCommand,
			Command:     "docsync doctor --check=docmap",
			Safe:        true,
			Description: "Validate DOCMAP.toml syntax",
		},
	},
	CacheUnavailable: {
		{
			Type:        RunCommand,
			Command:     "docsync validate --no-cache",
			Safe:        true,
			Description: "Bypass the scan cache for this run",
		},
	},
	LedgerLocked: {
		{
			Type:        RunCommand,
			Command:     "sleep 2 && docsync ${retry_command}",
			Safe:        true,
			Description: "Retry after the competing run releases the lock",
		},
	},
	LedgerUnsupported: {
		{
			Type:        RunCommand,
			Command:     "docsync --version",
			Safe:        true,
			Description: "Compare the ledger schema version against this build",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
