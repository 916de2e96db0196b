package endure

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/endurehq/endure-go/internal/engineclient"
	"github.com/endurehq/endure-go/pkg/logger"
)

// DefaultRetentionDays is how long the engine keeps execution state when a
// workflow does not declare its own retention.
const DefaultRetentionDays = 7

const maxRetentionDays = 30

var (
	workflowCtxType = reflect.TypeOf((*WorkflowContext)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

// Workflow is a user function registered for remote invocation. It is
// immutable after registration.
type Workflow struct {
	name      string
	retention int

	fn         reflect.Value
	inputType  reflect.Type
	outputType reflect.Type

	inputDesc  Descriptor
	outputDesc Descriptor

	client *engineclient.Client
	log    *logger.Logger
}

// WorkflowOption configures a workflow at registration time.
type WorkflowOption func(*workflowOptions)

type workflowOptions struct {
	name      string
	retention int
	client    *engineclient.Client
	log       *logger.Logger
}

// WithName overrides the workflow name otherwise derived from the function
// symbol.
func WithName(name string) WorkflowOption {
	return func(o *workflowOptions) { o.name = name }
}

// WithRetention sets how many days the engine retains execution state.
// Must be in [0, 30]; the default is DefaultRetentionDays.
func WithRetention(days int) WorkflowOption {
	return func(o *workflowOptions) { o.retention = days }
}

// withEngineClient injects the engine client; used by tests.
func withEngineClient(c *engineclient.Client) WorkflowOption {
	return func(o *workflowOptions) { o.client = c }
}

// withWorkflowLogger injects the logger; used by tests.
func withWorkflowLogger(l *logger.Logger) WorkflowOption {
	return func(o *workflowOptions) { o.log = l }
}

// NewWorkflow wraps fn into a Workflow. fn must have the shape
//
//	func(ctx *WorkflowContext, input I) (O, error)
//
// for any I and O serializable to JSON. The input and output descriptors
// for discovery are derived from I and O.
func NewWorkflow(fn any, opts ...WorkflowOption) (*Workflow, error) {
	o := workflowOptions{retention: DefaultRetentionDays}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retention < 0 || o.retention > maxRetentionDays {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRetention, o.retention)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: workflow function must be provided", ErrInvalidSignature)
	}
	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: expected a function, got %s", ErrInvalidSignature, fnType.Kind())
	}
	if fnType.NumIn() != 2 || fnType.IsVariadic() {
		return nil, fmt.Errorf("%w: the function must take exactly a ctx and an input parameter", ErrInvalidSignature)
	}
	if fnType.In(0) != workflowCtxType {
		return nil, fmt.Errorf("%w: the ctx parameter must be *endure.WorkflowContext", ErrInvalidSignature)
	}
	if fnType.NumOut() != 2 || fnType.Out(1) != errorType {
		return nil, fmt.Errorf("%w: the function must return (result, error)", ErrInvalidSignature)
	}

	name := o.name
	if name == "" {
		name = functionName(fn)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: workflow name must not be empty", ErrInvalidArgument)
	}

	inputType := fnType.In(1)
	outputType := fnType.Out(0)
	return &Workflow{
		name:       name,
		retention:  o.retention,
		fn:         reflect.ValueOf(fn),
		inputType:  inputType,
		outputType: outputType,
		inputDesc:  descriptorFor(inputType),
		outputDesc: descriptorFor(outputType),
		client:     o.client,
		log:        o.log,
	}, nil
}

// Name returns the workflow name used in routes, logs and discovery.
func (w *Workflow) Name() string { return w.name }

// Retention returns the declared retention period in days.
func (w *Workflow) Retention() int { return w.retention }

// InputDescriptor returns the discovery descriptor of the input type.
func (w *Workflow) InputDescriptor() Descriptor { return w.inputDesc }

// OutputDescriptor returns the discovery descriptor of the return type.
func (w *Workflow) OutputDescriptor() Descriptor { return w.outputDesc }

// Service is a named grouping of workflows. Registration goes through an
// explicit builder call rather than import-time side effects, so assembling
// a service is plain, testable code.
type Service struct {
	name     string
	registry *Registry
}

// NewService creates a service registered against the default registry.
func NewService(name string) *Service {
	return &Service{name: name, registry: DefaultRegistry()}
}

// NewServiceWithRegistry creates a service bound to a specific registry.
func NewServiceWithRegistry(name string, registry *Registry) *Service {
	return &Service{name: name, registry: registry}
}

// Name returns the service name used in routing paths and discovery.
func (s *Service) Name() string { return s.name }

// Register wraps fn into a Workflow, validates it and registers it under
// this service, mounting POST /execute/{service}/{workflow}.
func (s *Service) Register(fn any, opts ...WorkflowOption) (*Workflow, error) {
	wf, err := NewWorkflow(fn, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.registry.RegisterWorkflow(s.name, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// MustRegister is Register, panicking on error. Intended for process init.
func (s *Service) MustRegister(fn any, opts ...WorkflowOption) *Workflow {
	wf, err := s.Register(fn, opts...)
	if err != nil {
		panic(err)
	}
	return wf
}

// functionName resolves the symbol name of a function value, trimming the
// package path and the "-fm" suffix of method values.
func functionName(fn any) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	elements := strings.Split(full, ".")
	return strings.TrimSuffix(elements[len(elements)-1], "-fm")
}
