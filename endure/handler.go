package endure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/endurehq/endure-go/internal/engineclient"
	"github.com/endurehq/endure-go/pkg/logger"
	"github.com/endurehq/endure-go/pkg/metrics"
)

var validate = validator.New()

// executeRequest is the envelope every workflow invocation carries.
type executeRequest struct {
	ExecutionID string
	Input       any
}

// handler binds the workflow to an HTTP endpoint: it validates the request
// envelope, converts the input, signals the engine that the execution is
// running, invokes the user function and funnels every failure into a
// single JSON error shape.
func (w *Workflow) handler(serviceName string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		status, body := w.serve(r)
		metrics.ObserveWorkflowRequest(serviceName, w.name, status)
		respondJSON(rw, status, map[string]any{"output": body})
	}
}

func (w *Workflow) serve(r *http.Request) (int, any) {
	req, err := parseExecuteRequest(r)
	if err != nil {
		return errorResponse(err)
	}

	inputVal, err := w.convertInput(req.Input)
	if err != nil {
		return errorResponse(err)
	}

	client := w.client
	if client == nil {
		client, err = engineclient.FromEnv()
		if err != nil {
			return errorResponse(err)
		}
	}
	log := w.log
	if log == nil {
		log = logger.NewDefault("endure")
	}

	wctx := &WorkflowContext{ExecutionID: req.ExecutionID, reqCtx: r.Context(), client: client, log: log}

	resp, err := client.MarkExecutionAsRunning(r.Context(), req.ExecutionID)
	if err != nil {
		return errorResponse(err)
	}
	if resp.StatusCode >= 400 {
		return errorResponse(NewError(resp.StatusCode, map[string]any{
			"error": fmt.Sprintf("engine rejected execution start with status %d", resp.StatusCode),
		}))
	}

	result, err := w.invoke(wctx, inputVal)
	if err != nil {
		return errorResponse(err)
	}

	output, err := toJSONValue(result)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, output
}

// invoke calls the user function, turning a panic into a plain error so the
// client never sees a raw framework failure.
func (w *Workflow) invoke(wctx *WorkflowContext, input reflect.Value) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("workflow %s panicked: %v", w.name, rec)
		}
	}()
	outs := w.fn.Call([]reflect.Value{reflect.ValueOf(wctx), input})
	if e, _ := outs[1].Interface().(error); e != nil {
		return nil, e
	}
	return outs[0].Interface(), nil
}

// parseExecuteRequest validates the request envelope: a JSON object with an
// execution_id string and an input field.
func parseExecuteRequest(r *http.Request) (*executeRequest, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, NewError(http.StatusBadRequest, map[string]any{"error": "Request body could not be read"})
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil || body == nil {
		return nil, NewError(http.StatusBadRequest, map[string]any{"error": "Request body must be a JSON object"})
	}
	rawID, hasID := body["execution_id"]
	rawInput, hasInput := body["input"]
	if !hasID || !hasInput {
		return nil, NewError(http.StatusBadRequest, map[string]any{
			"error": "Request must include 'execution_id' and 'input' fields",
		})
	}
	id, ok := rawID.(string)
	if !ok || id == "" {
		return nil, NewError(http.StatusBadRequest, map[string]any{"error": "'execution_id' must be a non-empty string"})
	}
	return &executeRequest{ExecutionID: id, Input: rawInput}, nil
}

// convertInput turns the raw JSON input into the workflow's declared input
// type. Conversion failures and struct validation failures surface as
// validation errors (HTTP 422).
func (w *Workflow) convertInput(raw any) (reflect.Value, error) {
	if w.inputType == anyType {
		return reflect.ValueOf(&raw).Elem(), nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return reflect.Value{}, &ValidationError{Details: err.Error()}
	}
	dst := reflect.New(w.inputType)
	if err := json.Unmarshal(data, dst.Interface()); err != nil {
		return reflect.Value{}, &ValidationError{
			Details: fmt.Sprintf("failed to convert input to %s: %v", w.inputType, err),
		}
	}

	target := dst.Elem()
	structTarget := target
	for structTarget.Kind() == reflect.Pointer && !structTarget.IsNil() {
		structTarget = structTarget.Elem()
	}
	if structTarget.Kind() == reflect.Struct {
		if err := validate.Struct(structTarget.Interface()); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				return reflect.Value{}, &ValidationError{Details: fieldErrs.Error()}
			}
		}
	}
	return target, nil
}

// errorResponse is the single error funnel: every failure inside a workflow
// invocation maps to one HTTP status and one JSON payload. First match
// wins.
func errorResponse(err error) (int, any) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.StatusCode, ee.Output
	}
	if isValidationError(err) {
		var ve *ValidationError
		details := err.Error()
		if errors.As(err, &ve) {
			details = ve.Details
		}
		return http.StatusUnprocessableEntity, map[string]any{"error": "Validation error", "details": details}
	}
	var vale *ValueError
	if errors.As(err, &vale) {
		return http.StatusBadRequest, map[string]any{"error": "Value error", "details": vale.Error()}
	}
	var ue *engineclient.UnreachableError
	if errors.As(err, &ue) {
		return http.StatusInternalServerError, map[string]any{"error": ue.Error()}
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError, map[string]any{"error": "Engine protocol violation", "details": pe.Detail}
	}
	if errors.Is(err, engineclient.ErrBaseURLNotSet) {
		return http.StatusInternalServerError, map[string]any{"error": err.Error()}
	}
	return http.StatusInternalServerError, map[string]any{"error": "Internal server error", "details": err.Error()}
}

func respondJSON(rw http.ResponseWriter, status int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(body)
}
