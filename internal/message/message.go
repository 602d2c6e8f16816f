// Package message decodes the tagged requests sent by the browser extension
// and dispatches them to the batch pipelines.
package message

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/feedback"
	"github.com/valpere/sheetmentor/internal/orchestrator"
	"github.com/valpere/sheetmentor/internal/refiner"
)

// Message and response tags. Values are stable on the wire.
const (
	TypeRefineAnswers            = "REFINE_ANSWERS"
	TypeGenerateFeedback         = "GENERATE_FEEDBACK"
	TypeRefineAnswersResponse    = "REFINE_ANSWERS_RESPONSE"
	TypeGenerateFeedbackResponse = "GENERATE_FEEDBACK_RESPONSE"
	TypeErrorResponse            = "ERROR_RESPONSE"
)

// ErrUnknownType is the error text for an unrecognised tag.
const ErrUnknownType = "Unknown message type"

// Message is one of RefineAnswers or GenerateFeedback.
type Message interface {
	Type() string
	responseType() string
}

// RefineAnswers asks for the refinement pipeline over one source range.
type RefineAnswers struct {
	SpreadsheetID string `json:"spreadsheetId" validate:"notblank"`
	SourceRange   string `json:"sourceRange" validate:"notblank"`
	TargetRange   string `json:"targetRange" validate:"notblank"`
	CustomPrompt  string `json:"customPrompt,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
}

func (RefineAnswers) Type() string         { return TypeRefineAnswers }
func (RefineAnswers) responseType() string { return TypeRefineAnswersResponse }

// Request converts the payload into an orchestrator request.
func (m RefineAnswers) Request() orchestrator.RefineRequest {
	return orchestrator.RefineRequest{
		Options: refiner.Options{
			SpreadsheetID: m.SpreadsheetID,
			SourceRange:   m.SourceRange,
			TargetRange:   m.TargetRange,
			CustomPrompt:  m.CustomPrompt,
		},
		APIKey: m.APIKey,
	}
}

type FeedbackSource struct {
	QuestionRange string `json:"questionRange" validate:"notblank"`
	AnswerRange   string `json:"answerRange" validate:"notblank"`
}

// GenerateFeedback asks for the feedback pipeline over aligned question and
// answer ranges.
type GenerateFeedback struct {
	SpreadsheetID string         `json:"spreadsheetId" validate:"notblank"`
	SourceRange   FeedbackSource `json:"sourceRange"`
	TargetRange   string         `json:"targetRange" validate:"notblank"`
	CustomPrompt  string         `json:"customPrompt,omitempty"`
	APIKey        string         `json:"apiKey,omitempty"`
}

func (GenerateFeedback) Type() string         { return TypeGenerateFeedback }
func (GenerateFeedback) responseType() string { return TypeGenerateFeedbackResponse }

func (m GenerateFeedback) Request() orchestrator.FeedbackRequest {
	return orchestrator.FeedbackRequest{
		Options: feedback.Options{
			SpreadsheetID: m.SpreadsheetID,
			SourceRange: feedback.SourceRange{
				QuestionRange: m.SourceRange.QuestionRange,
				AnswerRange:   m.SourceRange.AnswerRange,
			},
			TargetRange:  m.TargetRange,
			CustomPrompt: m.CustomPrompt,
		},
		APIKey: m.APIKey,
	}
}

// Response is the envelope returned for every message.
type Response struct {
	Success   bool        `json:"success"`
	Type      string      `json:"type"`
	Data      any         `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorType apperr.Kind `json:"errorType,omitempty"`
}

// UnknownTypeError is returned by Decode for a tag outside the sum type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownType, e.Type)
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a {type, payload} envelope. A missing payload decodes to the
// zero message, which then fails validation.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "Invalid message")
	}

	var msg Message
	switch env.Type {
	case TypeRefineAnswers:
		var m RefineAnswers
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		msg = m
	case TypeGenerateFeedback:
		var m GenerateFeedback
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		msg = m
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
	return msg, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "Invalid payload")
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// validationMessage flattens validator errors into "a, b are required".
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	if len(fields) == 1 {
		return fields[0] + " is required"
	}
	return strings.Join(fields, ", ") + " are required"
}
