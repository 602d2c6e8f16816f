package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/batch"
	"github.com/valpere/sheetmentor/internal/orchestrator"
)

// Pipelines runs the batches behind each message. *orchestrator.Orchestrator
// satisfies it.
type Pipelines interface {
	RefineAnswers(ctx context.Context, req orchestrator.RefineRequest) batch.Result
	GenerateFeedback(ctx context.Context, req orchestrator.FeedbackRequest) batch.Result
}

// Router dispatches decoded messages. It holds no per-request state.
type Router struct {
	pipelines Pipelines
	validate  *validator.Validate
	log       zerolog.Logger
}

func NewRouter(p Pipelines, log zerolog.Logger) *Router {
	return &Router{
		pipelines: p,
		validate:  newValidator(),
		log:       log.With().Str("component", "message").Logger(),
	}
}

// HandleRaw decodes raw and handles the message. Decode failures produce an
// ERROR_RESPONSE envelope.
func (r *Router) HandleRaw(ctx context.Context, raw []byte) Response {
	msg, err := Decode(raw)
	if err != nil {
		var unknown *UnknownTypeError
		if errors.As(err, &unknown) {
			r.log.Warn().Str("type", unknown.Type).Msg("unknown message type")
			return Response{Success: false, Type: TypeErrorResponse, Error: ErrUnknownType}
		}
		return errorResponse(TypeErrorResponse, err)
	}
	return r.Handle(ctx, msg)
}

// Handle validates msg and runs its pipeline. The response success mirrors
// the batch result.
func (r *Router) Handle(ctx context.Context, msg Message) (resp Response) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error().Interface("panic", v).Msg("message handler panicked")
			resp = Response{
				Success:   false,
				Type:      TypeErrorResponse,
				Error:     fmt.Sprint(v),
				ErrorType: apperr.KindUnknown,
			}
		}
	}()

	if msg == nil {
		return Response{Success: false, Type: TypeErrorResponse, Error: ErrUnknownType}
	}
	if err := r.validate.Struct(msg); err != nil {
		r.log.Debug().Err(err).Str("type", msg.Type()).Msg("invalid payload")
		return Response{
			Success:   false,
			Type:      msg.responseType(),
			Error:     validationMessage(err),
			ErrorType: apperr.KindValidation,
		}
	}

	var res batch.Result
	switch m := msg.(type) {
	case RefineAnswers:
		res = r.pipelines.RefineAnswers(ctx, m.Request())
	case GenerateFeedback:
		res = r.pipelines.GenerateFeedback(ctx, m.Request())
	default:
		return Response{Success: false, Type: TypeErrorResponse, Error: ErrUnknownType}
	}

	r.log.Debug().Str("type", msg.Type()).Bool("success", res.Success).Msg("message handled")
	return Response{Success: res.Success, Type: msg.responseType(), Data: res}
}

func errorResponse(typ string, err error) Response {
	return Response{
		Success:   false,
		Type:      typ,
		Error:     err.Error(),
		ErrorType: apperr.KindOf(err),
	}
}
