package extract

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"

	"docsync/internal/paths"
	"docsync/internal/tree"
)

// Regex patterns for scanning
var (
	// Fence start/end - allow leading whitespace, support ``` and ~~~
	fenceStartPattern = regexp.MustCompile(`^\s*(` + "```" + `|~~~)(\w*)\s*$`)
	fenceEndPattern   = regexp.MustCompile(`^\s*(` + "```" + `|~~~)\s*$`)
)

// Extractor scans markdown files for path:line citations.
type Extractor struct {
	source   *tree.Snapshot
	citation *regexp.Regexp
}

// NewExtractor creates an Extractor recognizing the given source file
// extensions. The source snapshot decides whether citations inside
// fenced code blocks are real references or illustrative text; a nil
// snapshot drops all fenced citations.
func NewExtractor(source *tree.Snapshot, extensions []string) *Extractor {
	return &Extractor{
		source:   source,
		citation: buildCitationPattern(extensions),
	}
}

// buildCitationPattern compiles the citation regex for a set of source
// extensions. A citation is a path with at least one slash and a
// recognized extension, a colon, a line number, and an optional -end.
func buildCitationPattern(extensions []string) *regexp.Regexp {
	quoted := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(ext))
	}
	alt := strings.Join(quoted, "|")
	// Leading boundary keeps the match from starting inside a longer
	// path-like token (URLs, concatenated paths).
	return regexp.MustCompile(`(?:^|[^\w/.+-])((?:[\w.+-]+/)+[\w.+-]+\.(?:` + alt + `)):(-?\d+)(?:-(-?\d+))?`)
}

// ExtractFile scans a single documentation file. absPath locates the
// file on disk; docRel is its doc-root-relative path used in output.
func (e *Extractor) ExtractFile(absPath, docRel string) Result {
	result := Result{DocPath: docRel}

	file, err := os.Open(absPath)
	if err != nil {
		result.Errors = append(result.Errors, ExtractionError{
			DocPath: docRel,
			Reason:  "unreadable: " + err.Error(),
		})
		return result
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	// Support up to 1MB lines for large files
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		result.Errors = append(result.Errors, ExtractionError{
			DocPath: docRel,
			Reason:  "unreadable: " + err.Error(),
		})
		return result
	}

	inFence := false
	fenceDelimiter := "" // Track which delimiter started the fence (``` or ~~~)

	for i, line := range lines {
		lineNum := i + 1

		// Track fenced code blocks (must match same delimiter type)
		if !inFence {
			if match := fenceStartPattern.FindStringSubmatch(line); match != nil {
				inFence = true
				fenceDelimiter = match[1]
				continue
			}
		} else {
			if match := fenceEndPattern.FindStringSubmatch(line); match != nil {
				if match[1] == fenceDelimiter {
					inFence = false
					fenceDelimiter = ""
				}
				continue
			}
		}

		e.scanLine(line, lineNum, lines, inFence, &result)
	}

	return result
}

// scanLine extracts every citation on one line.
func (e *Extractor) scanLine(line string, lineNum int, lines []string, inFence bool, result *Result) {
	matches := e.citation.FindAllStringSubmatchIndex(line, -1)
	for _, m := range matches {
		// Groups: 1 = path, 2 = start line, 3 = optional end line
		pathStart, pathEnd := m[2], m[3]
		raw := line[pathStart:m[1]]
		column := pathStart + 1

		start, err := strconv.Atoi(line[m[4]:m[5]])
		if err != nil {
			result.Errors = append(result.Errors, ExtractionError{
				DocPath: result.DocPath, Line: lineNum, Column: column,
				Raw: raw, Reason: "line number out of range",
			})
			continue
		}
		if start <= 0 {
			result.Errors = append(result.Errors, ExtractionError{
				DocPath: result.DocPath, Line: lineNum, Column: column,
				Raw: raw, Reason: "non-positive line number",
			})
			continue
		}

		end := start
		if m[6] >= 0 {
			end, err = strconv.Atoi(line[m[6]:m[7]])
			if err != nil {
				result.Errors = append(result.Errors, ExtractionError{
					DocPath: result.DocPath, Line: lineNum, Column: column,
					Raw: raw, Reason: "line number out of range",
				})
				continue
			}
			if end < start {
				result.Errors = append(result.Errors, ExtractionError{
					DocPath: result.DocPath, Line: lineNum, Column: column,
					Raw: raw, Reason: "inverted line range",
				})
				continue
			}
		}

		target, ok := paths.CleanRelative(line[pathStart:pathEnd])
		if !ok {
			result.Errors = append(result.Errors, ExtractionError{
				DocPath: result.DocPath, Line: lineNum, Column: column,
				Raw: raw, Reason: "path escapes the source tree",
			})
			continue
		}

		// Fenced citations count only when the path is a real tree
		// file; everything else in a fence is illustrative
		if inFence && !e.inSourceTree(target) {
			continue
		}

		result.References = append(result.References, CodeReference{
			DocPath:    result.DocPath,
			Line:       lineNum,
			Column:     column,
			TargetPath: target,
			StartLine:  start,
			EndLine:    end,
			Anchor:     buildAnchor(lines, lineNum-1),
		})
	}
}

func (e *Extractor) inSourceTree(target string) bool {
	if e.source == nil {
		return false
	}
	_, found, _ := e.source.Resolve(target)
	return found
}

// buildAnchor joins the citing line with one line of context on each
// side, clipped at file bounds.
func buildAnchor(lines []string, lineIndex int) string {
	if lineIndex < 0 || lineIndex >= len(lines) {
		return ""
	}
	lo := lineIndex - 1
	if lo < 0 {
		lo = 0
	}
	hi := lineIndex + 1
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	return strings.Join(lines[lo:hi+1], "\n")
}
