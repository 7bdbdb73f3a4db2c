package question

import (
	"encoding/json"
	"fmt"
)

// envelope is the storage and wire shape of a question. A single struct
// with a type tag keeps the JSONB column and the API payloads stable while
// the in-memory representation stays a proper union.
type envelope struct {
	Type           Kind              `json:"type"`
	ID             string            `json:"id"`
	Prompt         string            `json:"prompt"`
	Explanation    string            `json:"explanation,omitempty"`
	Options        []string          `json:"options,omitempty"`
	CorrectOption  string            `json:"correct_option,omitempty"`
	CorrectOptions []string          `json:"correct_options,omitempty"`
	CorrectAnswers []string          `json:"correct_answers,omitempty"`
	Targets        []LabeledItem     `json:"targets,omitempty"`
	Items          []LabeledItem     `json:"items,omitempty"`
	CorrectMapping map[string]string `json:"correct_mapping,omitempty"`
	SubQuestions   []envelope        `json:"sub_questions,omitempty"`
}

// Marshal encodes a question into its tagged JSON form.
func Marshal(q Question) ([]byte, error) {
	env, err := toEnvelope(q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes a tagged JSON form back into a question value.
func Unmarshal(data []byte) (Question, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return fromEnvelope(env)
}

// MarshalList encodes an ordered question sequence.
func MarshalList(qs []Question) ([]byte, error) {
	envs := make([]envelope, 0, len(qs))
	for _, q := range qs {
		env, err := toEnvelope(q)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalList decodes an ordered question sequence.
func UnmarshalList(data []byte) ([]Question, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decode question list: %w", err)
	}
	out := make([]Question, 0, len(envs))
	for i, env := range envs {
		q, err := fromEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func toEnvelope(q Question) (envelope, error) {
	env := envelope{
		Type:        q.Kind(),
		ID:          ID(q),
		Prompt:      Prompt(q),
		Explanation: Explanation(q),
	}
	switch v := q.(type) {
	case Single:
		env.Options = v.Options
		env.CorrectOption = v.CorrectOption
	case Multiple:
		env.Options = v.Options
		env.CorrectOptions = v.CorrectOptions
	case Text:
		env.CorrectAnswers = v.CorrectAnswers
	case Drag:
		env.Targets = v.Targets
		env.Items = v.Items
		env.CorrectMapping = v.CorrectMapping
	case Composite:
		for _, sub := range v.SubQuestions {
			subEnv, err := toEnvelope(sub)
			if err != nil {
				return envelope{}, err
			}
			env.SubQuestions = append(env.SubQuestions, subEnv)
		}
	default:
		return envelope{}, fmt.Errorf("%w: unknown variant %T", ErrInvalidQuestion, q)
	}
	return env, nil
}

func fromEnvelope(env envelope) (Question, error) {
	base := Base{ID: env.ID, Prompt: env.Prompt, Explanation: env.Explanation}
	switch env.Type {
	case KindSingle:
		return Single{Base: base, Options: env.Options, CorrectOption: env.CorrectOption}, nil
	case KindMultiple:
		return Multiple{Base: base, Options: env.Options, CorrectOptions: env.CorrectOptions}, nil
	case KindText:
		return Text{Base: base, CorrectAnswers: env.CorrectAnswers}, nil
	case KindDrag:
		return Drag{Base: base, Targets: env.Targets, Items: env.Items, CorrectMapping: env.CorrectMapping}, nil
	case KindComposite:
		subs := make([]Question, 0, len(env.SubQuestions))
		for i, subEnv := range env.SubQuestions {
			sub, err := fromEnvelope(subEnv)
			if err != nil {
				return nil, fmt.Errorf("sub-question %d: %w", i+1, err)
			}
			subs = append(subs, sub)
		}
		return Composite{Base: base, SubQuestions: subs}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, env.Type)
	}
}
