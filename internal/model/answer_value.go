package model

import (
	"encoding/json"
	"fmt"
)

// AnswerValue is the tagged in-memory form of a submitted answer. Scalar types
// carry Text; composite types carry Parts keyed by sub-item label. The kind is
// selected by the question's declared type, never guessed from the payload.
type AnswerValue struct {
	Scalar bool              `json:"scalar"`
	Text   string            `json:"text,omitempty"`
	Parts  map[string]string `json:"parts,omitempty"`
}

func ScalarAnswer(text string) AnswerValue {
	return AnswerValue{Scalar: true, Text: text}
}

func CompositeAnswer(parts map[string]string) AnswerValue {
	return AnswerValue{Scalar: false, Parts: parts}
}

// IsEmpty reports whether the value carries no usable answer at all.
func (v AnswerValue) IsEmpty() bool {
	if v.Scalar {
		return v.Text == ""
	}
	return len(v.Parts) == 0
}

func (v AnswerValue) Encode() string {
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeAnswerValue parses a stored raw value for a question of the given
// type. A payload whose shape does not match the declared type is rejected so
// malformed pairings surface as grading data errors rather than silent zeros.
func DecodeAnswerValue(qType QuestionType, raw string) (AnswerValue, error) {
	var v AnswerValue
	if raw == "" {
		if qType.IsComposite() {
			return CompositeAnswer(nil), nil
		}
		return ScalarAnswer(""), nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return AnswerValue{}, fmt.Errorf("decode answer value: %w", err)
	}
	if qType.IsComposite() && v.Scalar {
		return AnswerValue{}, fmt.Errorf("scalar payload for composite question type %s", qType)
	}
	if !qType.IsComposite() && !v.Scalar {
		return AnswerValue{}, fmt.Errorf("composite payload for scalar question type %s", qType)
	}
	return v, nil
}
