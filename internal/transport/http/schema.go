package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"live-quiz-service/internal/domain"
)

const answerSchemaJSON = `{
  "type": "object",
  "required": ["questionId", "responseTimeMs"],
  "additionalProperties": false,
  "properties": {
    "questionId": {"type": "string", "minLength": 1},
    "selectedOption": {"type": ["integer", "null"], "minimum": 0},
    "responseTimeMs": {"type": "integer", "minimum": 0},
    "questionStartedAt": {"type": "string", "format": "date-time"}
  }
}`

var answerSchema = mustSchema(answerSchemaJSON)

func mustSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(err)
	}
	return schema
}

// answerPayload is the wire shape of an answer submission.
type answerPayload struct {
	QuestionID        string `json:"questionId"`
	SelectedOption    *int   `json:"selectedOption"`
	ResponseTimeMs    int64  `json:"responseTimeMs"`
	QuestionStartedAt string `json:"questionStartedAt,omitempty"`
}

// validateAnswer checks raw JSON against the answer schema before it is decoded.
func validateAnswer(raw []byte) error {
	result, err := answerSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return domain.InvalidInput("malformed answer: %v", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return domain.InvalidInput("malformed answer: %s", strings.Join(problems, "; "))
}

// decodeAnswer validates and decodes an answer payload.
func decodeAnswer(raw []byte) (domain.AnswerSubmission, error) {
	if err := validateAnswer(raw); err != nil {
		return domain.AnswerSubmission{}, err
	}
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.AnswerSubmission{}, domain.InvalidInput("malformed answer: %v", err)
	}
	sub := domain.AnswerSubmission{
		QuestionID:     p.QuestionID,
		SelectedOption: p.SelectedOption,
		ResponseTimeMs: p.ResponseTimeMs,
	}
	if p.QuestionStartedAt != "" {
		started, err := time.Parse(time.RFC3339Nano, p.QuestionStartedAt)
		if err != nil {
			return domain.AnswerSubmission{}, domain.InvalidInput("questionStartedAt: %v", err)
		}
		sub.QuestionStartedAt = started
	}
	return sub, nil
}
