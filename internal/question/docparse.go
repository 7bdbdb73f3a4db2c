package question

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// The document format is line oriented. A question block opens with an
// "ID:" line, takes its prompt from a "Câu <n>:" line, and collects lettered
// option lines where a leading "*" marks a correct answer. Anything else is
// ignored. Blank lines are filtered out before any rule applies, so line
// numbers in diagnostics are 1-based positions in the non-blank sequence.
var (
	idLineRe     = regexp.MustCompile(`^ID:\s*(.*)$`)
	promptLineRe = regexp.MustCompile(`^Câu\s+[0-9]+\s*:\s*(.*)$`)
	optionLineRe = regexp.MustCompile(`^(\*?)([A-E])\.\s+(.*)$`)
	digitsRe     = regexp.MustCompile(`^[0-9]+$`)
)

const usageTemplate = `The document does not contain any "ID:" or "Câu" lines, so it cannot be read as a quiz.
Expected format, one block per question:

ID: 1
Câu 1: What is the capital of Vietnam?
*A. Hanoi
B. Da Nang

Prefix each correct option with "*". Questions without options become free-text questions.`

// Validation is the outcome of the structural pre-check that must pass
// before ParseDocument is called.
type Validation struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// Issue is a non-fatal diagnostic collected while parsing. Warnings flag
// tolerated oddities (dropped blocks, overwritten prompts); parsing always
// continues past them.
type Issue struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
	Warning bool   `json:"warning"`
}

// ParseOptions tunes ParseDocument. NewID supplies identifiers for blocks
// whose ID token is unusable; tests inject a deterministic generator.
type ParseOptions struct {
	NewID func() string
}

// ValidateDocument runs the structural pre-check over the document text.
// Callers must short-circuit on a failed validation; ParseDocument assumes
// it passed.
func ValidateDocument(text string) Validation {
	lines := splitDocumentLines(text)

	var (
		errs     []string
		idCount  int
		cauCount int
	)
	for n, line := range lines {
		lineNo := n + 1
		if m := idLineRe.FindStringSubmatch(line); m != nil {
			idCount++
			token := strings.TrimSpace(m[1])
			if !digitsRe.MatchString(token) {
				errs = append(errs, fmt.Sprintf("line %d: question ID %q must be a number", lineNo, token))
			}
			continue
		}
		if promptLineRe.MatchString(line) {
			cauCount++
			if idCount == 0 {
				errs = append(errs, fmt.Sprintf("line %d: prompt line appears before any \"ID:\" line", lineNo))
			}
			continue
		}
		if optionLineRe.MatchString(line) && idCount == 0 {
			errs = append(errs, fmt.Sprintf("line %d: option line appears before any \"ID:\" line", lineNo))
		}
	}

	if idCount == 0 && cauCount == 0 {
		return Validation{OK: false, Errors: []string{usageTemplate}}
	}
	if cauCount == 0 {
		msg := fmt.Sprintf("no \"Câu\" prompt line found after any \"ID:\" line in %d lines of input", len(lines))
		return Validation{OK: false, Errors: []string{msg}}
	}
	return Validation{OK: len(errs) == 0, Errors: errs}
}

// ParseDocument extracts the question sequence from validated document
// text. It is tolerant: malformed lines inside a structurally valid file
// are reported as issues while parsing continues, and the caller receives
// every block that could be assembled.
func ParseDocument(text string, opts ParseOptions) ([]Question, []Issue) {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	lines := splitDocumentLines(text)

	var (
		questions []Question
		issues    []Issue
		block     *docBlock
	)
	seenIDs := make(map[string]struct{})

	finalize := func() {
		if block == nil {
			return
		}
		if strings.TrimSpace(block.prompt) == "" {
			issues = append(issues, Issue{
				Line:    block.openedAt,
				Message: fmt.Sprintf("question block %q has no prompt line and was dropped", block.id),
				Warning: true,
			})
			block = nil
			return
		}
		if id := strings.TrimSpace(block.id); id != "" {
			if _, dup := seenIDs[id]; dup {
				issues = append(issues, Issue{
					Line:    block.openedAt,
					Message: fmt.Sprintf("duplicate question ID %q; a generated ID was used instead", id),
					Warning: true,
				})
				block.id = ""
			}
		}
		q := block.build(newID)
		seenIDs[ID(q)] = struct{}{}
		questions = append(questions, q)
		block = nil
	}

	for n, line := range lines {
		lineNo := n + 1

		if m := idLineRe.FindStringSubmatch(line); m != nil {
			finalize()
			block = &docBlock{openedAt: lineNo, id: strings.TrimSpace(m[1])}
			continue
		}

		if m := promptLineRe.FindStringSubmatch(line); m != nil {
			if block == nil {
				continue
			}
			if block.prompt != "" {
				issues = append(issues, Issue{
					Line:    lineNo,
					Message: "second prompt line in the same block overwrites the first",
					Warning: true,
				})
			}
			block.prompt = strings.TrimSpace(m[1])
			continue
		}

		if m := optionLineRe.FindStringSubmatch(line); m != nil {
			if block == nil {
				continue
			}
			optText := strings.TrimSpace(m[3])
			block.options = append(block.options, optText)
			if m[1] == "*" {
				block.correct = append(block.correct, optText)
			}
			continue
		}

		if block != nil && strings.HasPrefix(line, "*") {
			issues = append(issues, Issue{
				Line:    lineNo,
				Message: "line starts with \"*\" but is not a valid option line; ignored",
				Warning: true,
			})
		}
		// Every other line is ignored.
	}
	finalize()

	return questions, issues
}

type docBlock struct {
	openedAt int
	id       string
	prompt   string
	options  []string
	correct  []string
}

// build infers the variant from the number of correct markers: zero markers
// always produce a free-text question, even when option lines were
// collected, so an unmarked multiple-choice block surfaces downstream as
// "needs manual answer" rather than as a choice question with no key.
func (b *docBlock) build(newID func() string) Question {
	id := b.id
	if id == "" {
		id = newID()
	}
	base := Base{ID: id, Prompt: b.prompt}

	switch len(b.correct) {
	case 0:
		return Text{Base: base}
	case 1:
		return Single{Base: base, Options: b.options, CorrectOption: b.correct[0]}
	default:
		return Multiple{Base: base, Options: b.options, CorrectOptions: b.correct}
	}
}

// splitDocumentLines trims every line and drops blank ones. A literal blank
// line never counts as a format token, and diagnostics number the filtered
// sequence.
func splitDocumentLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
