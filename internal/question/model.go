package question

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrNeedsAnswer     = errors.New("question has no correct answer yet")
)

// Kind discriminates the question variants.
type Kind string

const (
	KindSingle    Kind = "single"
	KindMultiple  Kind = "multiple"
	KindText      Kind = "text"
	KindDrag      Kind = "drag"
	KindComposite Kind = "composite"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSingle, KindMultiple, KindText, KindDrag, KindComposite:
		return true
	default:
		return false
	}
}

// Base carries the fields shared by every question variant.
type Base struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	Explanation string `json:"explanation,omitempty"`
}

// Question is a closed union over the five variants. Only types in this
// package implement it; consumers dispatch with a type switch.
type Question interface {
	Kind() Kind
	base() Base
}

// ID returns the stable identifier of any variant.
func ID(q Question) string { return q.base().ID }

// Prompt returns the prompt text of any variant.
func Prompt(q Question) string { return q.base().Prompt }

// Explanation returns the optional explanation text of any variant.
func Explanation(q Question) string { return q.base().Explanation }

// Single is a choose-one question. Exactly one option is correct.
type Single struct {
	Base
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
}

func (q Single) Kind() Kind { return KindSingle }
func (q Single) base() Base { return q.Base }

// Multiple is a choose-many question scored by exact set equality.
type Multiple struct {
	Base
	Options        []string `json:"options"`
	CorrectOptions []string `json:"correct_options"`
}

func (q Multiple) Kind() Kind { return KindMultiple }
func (q Multiple) base() Base { return q.Base }

// Text is a free-text question. Any one of CorrectAnswers matches, compared
// case- and whitespace-insensitively at grading time. Order is kept for
// display only.
type Text struct {
	Base
	CorrectAnswers []string `json:"correct_answers"`
}

func (q Text) Kind() Kind { return KindText }
func (q Text) base() Base { return q.Base }

// LabeledItem is a drag target or draggable item.
type LabeledItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Drag is a drag-to-group question. CorrectMapping maps item id to target
// id; an item absent from the mapping correctly belongs to no target.
type Drag struct {
	Base
	Targets        []LabeledItem     `json:"targets"`
	Items          []LabeledItem     `json:"items"`
	CorrectMapping map[string]string `json:"correct_mapping"`
}

func (q Drag) Kind() Kind { return KindDrag }
func (q Drag) base() Base { return q.Base }

// Composite bundles independent sub-questions scored separately.
// Composites do not nest.
type Composite struct {
	Base
	SubQuestions []Question `json:"-"`
}

func (q Composite) Kind() Kind { return KindComposite }
func (q Composite) base() Base { return q.Base }

// Validate reports the structural problems that block publishing a
// question. The document parser deliberately emits questions that fail
// these checks (a Text block with no marked answers, a Single with a lone
// option); callers gate on Validate before a quiz goes live.
func Validate(q Question) error {
	if strings.TrimSpace(ID(q)) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if strings.TrimSpace(Prompt(q)) == "" {
		return fmt.Errorf("%w: missing prompt", ErrInvalidQuestion)
	}

	switch v := q.(type) {
	case Single:
		if err := validateOptions(v.Options); err != nil {
			return err
		}
		if !containsString(v.Options, v.CorrectOption) {
			return fmt.Errorf("%w: correct option %q is not among the options", ErrInvalidQuestion, v.CorrectOption)
		}
	case Multiple:
		if err := validateOptions(v.Options); err != nil {
			return err
		}
		if len(v.CorrectOptions) == 0 {
			return fmt.Errorf("%w: no correct options marked", ErrNeedsAnswer)
		}
		for _, c := range v.CorrectOptions {
			if !containsString(v.Options, c) {
				return fmt.Errorf("%w: correct option %q is not among the options", ErrInvalidQuestion, c)
			}
		}
	case Text:
		if !hasUsableAnswer(v.CorrectAnswers) {
			return fmt.Errorf("%w: text question needs at least one non-empty correct answer", ErrNeedsAnswer)
		}
	case Drag:
		return validateDrag(v)
	case Composite:
		return validateComposite(v)
	default:
		return fmt.Errorf("%w: unknown variant %T", ErrInvalidQuestion, q)
	}
	return nil
}

// NeedsAnswer reports whether a question is structurally sound but still
// waiting for an author-supplied answer key.
func NeedsAnswer(q Question) bool {
	return errors.Is(Validate(q), ErrNeedsAnswer)
}

func validateOptions(options []string) error {
	if len(options) < 2 {
		return fmt.Errorf("%w: at least 2 options are required", ErrInvalidQuestion)
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i+1)
		}
	}
	return nil
}

func validateDrag(q Drag) error {
	if len(q.Targets) == 0 {
		return fmt.Errorf("%w: drag question needs at least one target", ErrInvalidQuestion)
	}
	if len(q.Items) == 0 {
		return fmt.Errorf("%w: drag question needs at least one item", ErrInvalidQuestion)
	}
	targetIDs := map[string]struct{}{}
	for i, t := range q.Targets {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("%w: target %d has no id", ErrInvalidQuestion, i+1)
		}
		if _, dup := targetIDs[id]; dup {
			return fmt.Errorf("%w: duplicate target id %q", ErrInvalidQuestion, id)
		}
		targetIDs[id] = struct{}{}
	}
	itemIDs := map[string]struct{}{}
	for i, it := range q.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return fmt.Errorf("%w: item %d has no id", ErrInvalidQuestion, i+1)
		}
		if _, dup := itemIDs[id]; dup {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidQuestion, id)
		}
		itemIDs[id] = struct{}{}
	}
	for itemID, targetID := range q.CorrectMapping {
		if _, ok := itemIDs[itemID]; !ok {
			return fmt.Errorf("%w: mapping references unknown item %q", ErrInvalidQuestion, itemID)
		}
		if targetID == "" {
			// Equivalent to leaving the item out of the mapping.
			continue
		}
		if _, ok := targetIDs[targetID]; !ok {
			return fmt.Errorf("%w: mapping references unknown target %q", ErrInvalidQuestion, targetID)
		}
	}
	return nil
}

func validateComposite(q Composite) error {
	if len(q.SubQuestions) == 0 {
		return fmt.Errorf("%w: composite question needs at least one sub-question", ErrInvalidQuestion)
	}
	seen := map[string]struct{}{}
	for i, sub := range q.SubQuestions {
		if sub.Kind() == KindComposite {
			return fmt.Errorf("%w: sub-question %d: composites do not nest", ErrInvalidQuestion, i+1)
		}
		id := ID(sub)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate sub-question id %q", ErrInvalidQuestion, id)
		}
		seen[id] = struct{}{}
		if err := Validate(sub); err != nil {
			return fmt.Errorf("sub-question %d: %w", i+1, err)
		}
	}
	return nil
}

func hasUsableAnswer(answers []string) bool {
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
