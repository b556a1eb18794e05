// Package dispatch executes model-requested tool calls against the catalog.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/event"
	"github.com/dotcommander/mcpagent/internal/metrics"
	"github.com/dotcommander/mcpagent/internal/proto"
)

// ErrToolNotFound is returned when a call names a tool the catalog lacks.
var ErrToolNotFound = errors.New("tool not found")

// Tools resolves and executes tools. *catalog.Catalog implements it.
type Tools interface {
	Lookup(name string) (catalog.Descriptor, bool)
	Call(ctx context.Context, desc catalog.Descriptor, args map[string]any) (string, error)
}

// Result is the outcome of one call. Text holds the tool output when OK and
// the error message otherwise.
type Result struct {
	OK   bool
	Text string
	Err  error
}

// Options configures a Dispatcher.
type Options struct {
	// ValidateArguments checks arguments against the tool schema before
	// the call. A mismatch becomes an error result.
	ValidateArguments bool
	Log               zerolog.Logger
	Metrics           *metrics.Metrics
}

// Dispatcher runs tool calls one at a time and reports each on a Sink.
type Dispatcher struct {
	tools    Tools
	validate bool
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

// New creates a Dispatcher over tools.
func New(tools Tools, opts Options) *Dispatcher {
	return &Dispatcher{
		tools:    tools,
		validate: opts.ValidateArguments,
		log:      opts.Log,
		metrics:  opts.Metrics,
		schemas:  map[string]*gojsonschema.Schema{},
	}
}

// Invoke executes call, the i-th of n calls in one model response. It emits
// tool_start before the execution and exactly one of tool_end or tool_error
// after it, also when ctx is done by then. Tool failures are returned inside
// Result; the returned error is only set when the sink or ctx gives up.
func (d *Dispatcher) Invoke(ctx context.Context, call proto.ToolCall, i, n int, sink event.Sink) (Result, error) {
	if err := sink.Emit(ctx, event.ToolStart(call.ID, call.Name, call.Arguments, i, n)); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := d.run(ctx, call)
	took := time.Since(start)
	if err := ctx.Err(); err != nil {
		d.metrics.ToolCall(call.Name, false, took.Seconds())
		d.log.Debug().Str("tool", call.Name).Str("id", call.ID).Dur("took", took).Msg("tool call cancelled")
		res = failed(err, "request cancelled")
		if err := sink.Emit(context.WithoutCancel(ctx), event.ToolError(call.ID, res.Text)); err != nil {
			return res, err
		}
		return res, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	d.metrics.ToolCall(call.Name, res.OK, took.Seconds())

	log := d.log.Debug().Str("tool", call.Name).Str("id", call.ID).Dur("took", took)
	if !res.OK {
		log.Str("error", res.Text).Msg("tool call failed")
		return res, sink.Emit(ctx, event.ToolError(call.ID, res.Text))
	}
	log.Int("bytes", len(res.Text)).Msg("tool call done")
	return res, sink.Emit(ctx, event.ToolEnd(call.ID, call.Name, res.Text))
}

func (d *Dispatcher) run(ctx context.Context, call proto.ToolCall) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tool %s panicked: %v", call.Name, r)
			res = failed(err, err.Error())
		}
	}()

	desc, ok := d.tools.Lookup(call.Name)
	if !ok {
		return failed(fmt.Errorf("%w: %s", ErrToolNotFound, call.Name), fmt.Sprintf("tool '%s' not found", call.Name))
	}

	if d.validate {
		if err := d.check(desc, call.Arguments); err != nil {
			return failed(err, err.Error())
		}
	}

	out, err := d.tools.Call(ctx, desc, call.Arguments)
	if err != nil {
		return failed(err, err.Error())
	}
	return Result{OK: true, Text: out}
}

func failed(err error, text string) Result {
	return Result{Text: text, Err: err}
}

func (d *Dispatcher) check(desc catalog.Descriptor, args map[string]any) error {
	schema, err := d.schema(desc)
	if err != nil {
		// An unusable schema never blocks a call.
		d.log.Debug().Err(err).Str("tool", desc.Name).Msg("skipping argument validation")
		return nil
	}
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate arguments of %s: %w", desc.Name, err)
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", desc.Name, strings.Join(problems, "; "))
}

// schema compiles the schema of desc once. A schema that failed to compile
// before comes back as nil without an error.
func (d *Dispatcher) schema(desc catalog.Descriptor) (*gojsonschema.Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.schemas[desc.Name]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(desc.Schema.Object()))
	if err != nil {
		// nil marks a schema that does not compile.
		d.schemas[desc.Name] = nil
		return nil, fmt.Errorf("compile schema of %s: %w", desc.Name, err)
	}
	d.schemas[desc.Name] = s
	return s, nil
}
