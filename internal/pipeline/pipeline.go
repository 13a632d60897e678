// Package pipeline drives a natural-language question through extraction,
// validation, translation, and execution, reporting every intermediate
// artifact for auditability. One failure stops the run; clarification is the
// only branch that lets a request continue after a stop.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nlq/internal/analytics"
	"nlq/internal/extractor"
	"nlq/internal/intent"
	"nlq/internal/translator"
)

// Stage names where the pipeline currently is, or where it stopped.
type Stage string

const (
	StageReceived               Stage = "received"
	StageIntentExtracted        Stage = "intent_extracted"
	StageClarificationRequested Stage = "clarification_requested"
	StageIntentValidated        Stage = "intent_validated"
	StageQueryBuilt             Stage = "query_built"
	StageExecuted               Stage = "executed"
	StageCompleted              Stage = "completed"
	// StageInvalidRequest is only ever reached by Resume with a bad id.
	StageInvalidRequest Stage = "invalid_request"
)

// StageError is the single structured failure shape. Kind is a stable
// machine-readable discriminator; Details carries error-specific context.
type StageError struct {
	Stage   Stage          `json:"stage"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response is the complete outcome of one pipeline run. Every intermediate
// artifact the pipeline produced is present, nothing is hidden: the response
// is the audit record. Error and Success are mutually exclusive; a
// clarification request is neither.
type Response struct {
	Query      string `json:"query"`
	Success    bool   `json:"success"`
	Stage      Stage  `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
	RequestID  string `json:"request_id"`

	RawIntent            intent.RawIntent  `json:"raw_intent,omitempty"`
	MissingFields        []string          `json:"missing_fields,omitempty"`
	ClarificationMessage string            `json:"clarification_message,omitempty"`
	ValidatedIntent      *intent.Intent    `json:"validated_intent,omitempty"`
	TranslatedQuery      *translator.Query `json:"translated_query,omitempty"`
	Data                 []map[string]any  `json:"data,omitempty"`

	Error *StageError `json:"error,omitempty"`
}

// Extractor produces an untrusted raw intent from a question.
type Extractor interface {
	Extract(ctx context.Context, query string) (intent.RawIntent, error)
}

// Executor runs a translated query against the analytics engine.
type Executor interface {
	Load(ctx context.Context, query translator.Query) (*analytics.Response, error)
}

// Orchestrator wires the pipeline stages together. It owns control flow and
// error wrapping only; every stage is a collaborator.
type Orchestrator struct {
	extractor Extractor
	validator *intent.Validator
	executor  Executor
	states    StateStore
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Orchestrator. A nil logger disables logging.
func New(ext Extractor, validator *intent.Validator, exec Executor, states StateStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		extractor: ext,
		validator: validator,
		executor:  exec,
		states:    states,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes a natural-language question through the full pipeline. It
// never returns an error: every failure is wrapped into the response.
func (o *Orchestrator) Run(ctx context.Context, query string) *Response {
	start := o.now()
	resp := &Response{
		Query:     query,
		Stage:     StageReceived,
		RequestID: uuid.NewString(),
	}
	o.logger.Info("pipeline started",
		zap.String("request_id", resp.RequestID), zap.String("query", query))

	raw, err := o.extractor.Extract(ctx, query)
	if err != nil {
		o.fail(resp, classifyExtractionError(resp.Stage, err))
		return o.finish(resp, start)
	}
	resp.RawIntent = raw
	resp.Stage = StageIntentExtracted

	return o.finish(o.advance(ctx, resp), start)
}

// Resume continues a clarification-suspended pipeline. The saved state is
// consumed whether the resume succeeds or not; only answers for fields the
// pipeline actually asked about are merged in.
func (o *Orchestrator) Resume(ctx context.Context, requestID string, answers map[string]any) *Response {
	start := o.now()

	state, err := o.states.Load(requestID)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			o.logger.Error("state load failed", zap.String("request_id", requestID), zap.Error(err))
		}
		resp := &Response{
			Stage:     StageInvalidRequest,
			RequestID: requestID,
			Error: &StageError{
				Stage:   StageInvalidRequest,
				Kind:    "STATE_NOT_FOUND",
				Message: "invalid or expired request_id. Please start a new query.",
				Details: map[string]any{
					"request_id": requestID,
					"hint":       "clarification state expires after " + DefaultStateTTL.String() + " or on restart",
				},
			},
		}
		return o.finish(resp, start)
	}

	asked := make(map[string]bool, len(state.MissingFields))
	for _, f := range state.MissingFields {
		asked[f] = true
	}
	merged := make(intent.RawIntent, len(state.Intent)+len(answers))
	for k, v := range state.Intent {
		merged[k] = v
	}
	for k, v := range answers {
		if asked[k] {
			merged[k] = v
		}
	}

	if err := o.states.Delete(requestID); err != nil {
		o.logger.Warn("state delete failed", zap.String("request_id", requestID), zap.Error(err))
	}

	resp := &Response{
		Query:     state.OriginalQuery,
		Stage:     StageIntentExtracted,
		RequestID: requestID,
		RawIntent: merged,
	}
	o.logger.Info("pipeline resumed",
		zap.String("request_id", requestID),
		zap.Strings("asked", state.MissingFields))

	return o.finish(o.advance(ctx, resp), start)
}

// advance drives a response with a raw intent through validation,
// translation, execution, and completion.
func (o *Orchestrator) advance(ctx context.Context, resp *Response) *Response {
	validated, err := o.validator.Validate(resp.RawIntent)
	if err != nil {
		var incomplete *intent.IncompleteError
		if errors.As(err, &incomplete) {
			return o.requestClarification(resp, incomplete)
		}
		o.fail(resp, classifyValidationError(resp.Stage, err))
		return resp
	}
	resp.ValidatedIntent = &validated
	resp.Stage = StageIntentValidated

	query, err := translator.Build(validated, o.now())
	if err != nil {
		o.fail(resp, &StageError{
			Stage:   resp.Stage,
			Kind:    "TRANSLATION_ERROR",
			Message: err.Error(),
		})
		return resp
	}
	resp.TranslatedQuery = &query
	resp.Stage = StageQueryBuilt

	result, err := o.executor.Load(ctx, query)
	if err != nil {
		o.fail(resp, classifyExecutionError(resp.Stage, err))
		return resp
	}
	resp.Data = result.Data
	resp.Stage = StageExecuted

	resp.Stage = StageCompleted
	resp.Success = true
	return resp
}

func (o *Orchestrator) requestClarification(resp *Response, incomplete *intent.IncompleteError) *Response {
	resp.Stage = StageClarificationRequested
	resp.MissingFields = incomplete.MissingFields
	resp.ClarificationMessage = incomplete.ClarificationMessage()

	state := State{
		RequestID:     resp.RequestID,
		OriginalQuery: resp.Query,
		Intent:        resp.RawIntent,
		MissingFields: incomplete.MissingFields,
	}
	if err := o.states.Save(state); err != nil {
		o.logger.Error("state save failed", zap.String("request_id", resp.RequestID), zap.Error(err))
		o.fail(resp, &StageError{
			Stage:   StageClarificationRequested,
			Kind:    "STATE_SAVE_FAILED",
			Message: "could not persist clarification state",
		})
		return resp
	}
	o.logger.Info("clarification requested",
		zap.String("request_id", resp.RequestID),
		zap.Strings("missing_fields", incomplete.MissingFields))
	return resp
}

func (o *Orchestrator) fail(resp *Response, stageErr *StageError) {
	resp.Success = false
	resp.Error = stageErr
	o.logger.Warn("pipeline stopped",
		zap.String("request_id", resp.RequestID),
		zap.String("stage", string(stageErr.Stage)),
		zap.String("kind", stageErr.Kind),
		zap.String("message", stageErr.Message))
}

func (o *Orchestrator) finish(resp *Response, start time.Time) *Response {
	resp.DurationMS = o.now().Sub(start).Milliseconds()
	return resp
}

// ===== ERROR CLASSIFICATION =====

func classifyExtractionError(stage Stage, err error) *StageError {
	kind := "EXTRACTION_FAILED"
	var callErr *extractor.CallError
	var malformed *extractor.MalformedOutputError
	var empty *extractor.EmptyOutputError
	switch {
	case errors.Is(err, extractor.ErrTimeout):
		kind = "LLM_TIMEOUT"
	case errors.As(err, &malformed):
		kind = "MALFORMED_OUTPUT"
	case errors.As(err, &empty):
		kind = "EMPTY_OUTPUT"
	case errors.As(err, &callErr):
		kind = "LLM_CALL_FAILED"
	}
	return &StageError{Stage: stage, Kind: kind, Message: err.Error()}
}

func classifyValidationError(stage Stage, err error) *StageError {
	var verr *intent.ValidationError
	if errors.As(err, &verr) {
		details := map[string]any{}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		if verr.Value != "" {
			details["value"] = verr.Value
		}
		if len(verr.Suggestions) > 0 {
			details["suggestions"] = verr.Suggestions
		}
		if len(verr.Candidates) > 0 {
			details["candidates"] = verr.Candidates
		}
		return &StageError{
			Stage:   stage,
			Kind:    string(verr.Code),
			Message: verr.Message,
			Details: details,
		}
	}
	return &StageError{Stage: stage, Kind: "VALIDATION_FAILED", Message: err.Error()}
}

func classifyExecutionError(stage Stage, err error) *StageError {
	kind := "EXECUTION_FAILED"
	details := map[string]any{}
	var connErr *analytics.ConnectionError
	var timeoutErr *analytics.TimeoutError
	var unavailable *analytics.ServiceUnavailableError
	var httpErr *analytics.HTTPError
	var tooLarge *analytics.TooLargeError
	switch {
	case errors.As(err, &connErr):
		kind = "CONNECTION_ERROR"
	case errors.As(err, &timeoutErr):
		kind = "TIMEOUT"
	case errors.As(err, &unavailable):
		kind = "SERVICE_UNAVAILABLE"
	case errors.As(err, &httpErr):
		kind = "HTTP_ERROR"
		details["status"] = httpErr.Status
		details["body"] = httpErr.Body
	case errors.As(err, &tooLarge):
		kind = "TOO_LARGE"
		details["limit"] = tooLarge.Limit
		details["max_rows"] = tooLarge.MaxRows
	}
	stageErr := &StageError{Stage: stage, Kind: kind, Message: err.Error()}
	if len(details) > 0 {
		stageErr.Details = details
	}
	return stageErr
}
