package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dotcommander/mcpagent/internal/dispatch"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/event"
	"github.com/dotcommander/mcpagent/internal/metrics"
	"github.com/dotcommander/mcpagent/internal/proto"
)

// Defaults applied to a zero Config.
const (
	DefaultMaxIterations = 10
	DefaultChunkSize     = 10
)

// Completer is the model completion service.
type Completer interface {
	Complete(ctx context.Context, messages []proto.Message) (proto.Response, error)
}

// Invoker executes one tool call and reports it on the sink.
// *dispatch.Dispatcher implements it.
type Invoker interface {
	Invoke(ctx context.Context, call proto.ToolCall, i, n int, sink event.Sink) (dispatch.Result, error)
}

// Config configures a Loop.
type Config struct {
	// SystemPrompt replaces DefaultSystemPrompt when set.
	SystemPrompt  string
	MaxIterations int
	ChunkSize     int
	// ChunkDelay is the pause between two answer chunks. Zero disables it.
	ChunkDelay time.Duration

	Log     zerolog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Loop is the orchestration state machine. It holds no per-conversation
// state, so one Loop serves any number of concurrent conversations.
type Loop struct {
	model Completer
	tools Invoker
	cfg   Config
}

// New creates a Loop. Zero MaxIterations and ChunkSize get their defaults.
func New(model Completer, tools Invoker, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loop{model: model, tools: tools, cfg: cfg}
}

type state int

const (
	stateAwaitModel state = iota
	stateDispatchTools
	stateFinalResponse
	stateDone
)

var errCapReached = errors.New("iteration cap reached")

// conversation is the state of one Run.
type conversation struct {
	*Loop
	sink       event.Sink
	log        zerolog.Logger
	transcript *proto.Transcript
	iteration  int
	response   proto.Response
	outcome    string
}

// Run executes one conversation for input, emitting its events on sink. The
// last event is always ai_response_end or error. The returned error is only
// set when the sink itself fails.
func (l *Loop) Run(ctx context.Context, input string, sink event.Sink) error {
	system := l.cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt(l.cfg.Now())
	}
	c := &conversation{
		Loop:       l,
		sink:       sink,
		log:        l.logger(ctx),
		transcript: proto.NewTranscript(system, input),
	}

	st := stateAwaitModel
	var err error
	for st != stateDone && err == nil {
		switch st {
		case stateAwaitModel:
			st, err = c.awaitModel(ctx)
		case stateDispatchTools:
			st, err = c.dispatchTools(ctx)
		case stateFinalResponse:
			st, err = c.finalResponse(ctx)
		}
	}
	if err != nil {
		return c.fail(ctx, err)
	}
	c.finish()
	return nil
}

// Stream runs a conversation in its own goroutine. The channel is closed
// after the terminal event. Once ctx is done, events only reach a reader
// that is already waiting, so a caller may cancel and stop reading.
func (l *Loop) Stream(ctx context.Context, input string) <-chan event.Event {
	ch := make(event.Chan)
	sink := event.SinkFunc(func(_ context.Context, e event.Event) error {
		return ch.Emit(ctx, e)
	})
	go func() {
		defer close(ch)
		if err := l.Run(ctx, input, sink); err != nil {
			lg := l.logger(ctx)
			lg.Debug().Err(err).Msg("stream abandoned")
		}
	}()
	return ch
}

func (l *Loop) logger(ctx context.Context) zerolog.Logger {
	if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
		return *lg
	}
	return l.cfg.Log
}

func (c *conversation) awaitModel(ctx context.Context) (state, error) {
	if err := ctx.Err(); err != nil {
		return stateDone, err
	}
	if c.iteration >= c.cfg.MaxIterations {
		return stateDone, errCapReached
	}
	c.iteration++
	if err := c.sink.Emit(ctx, event.Status(fmt.Sprintf("reasoning round %d", c.iteration))); err != nil {
		return stateDone, err
	}

	resp, err := c.complete(ctx)
	if err != nil {
		return stateDone, fmt.Errorf("model call failed: %w", err)
	}
	resp.ToolCalls = proto.NormalizeCalls(resp.ToolCalls)
	c.response = resp
	c.log.Debug().Int("iteration", c.iteration).Int("tool_calls", len(resp.ToolCalls)).Msg("model responded")

	if resp.HasToolCalls() {
		return stateDispatchTools, nil
	}
	return stateFinalResponse, nil
}

func (c *conversation) complete(ctx context.Context) (resp proto.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return c.model.Complete(ctx, c.transcript.Messages())
}

func (c *conversation) dispatchTools(ctx context.Context) (state, error) {
	calls := c.response.ToolCalls
	n := len(calls)
	if err := c.sink.Emit(ctx, event.ToolPlan(n)); err != nil {
		return stateDone, err
	}

	for i, call := range calls {
		res, err := c.tools.Invoke(ctx, call, i+1, n, c.sink)
		if err != nil {
			return stateDone, err
		}

		if err := c.transcript.Append(proto.Message{
			Role:      proto.RoleAssistant,
			Content:   c.response.Content,
			ToolCalls: []proto.ToolCall{call},
		}); err != nil {
			return stateDone, err
		}
		content := res.Text
		if !res.OK {
			content = "Error: " + res.Text
		}
		if err := c.transcript.Append(proto.Message{
			Role:       proto.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
			IsError:    !res.OK,
		}); err != nil {
			return stateDone, err
		}
	}
	return stateAwaitModel, nil
}

func (c *conversation) finalResponse(ctx context.Context) (state, error) {
	answer := c.response.Content
	if err := c.sink.Emit(ctx, event.ResponseStart()); err != nil {
		return stateDone, err
	}

	for i, chunk := range Chunks(answer, c.cfg.ChunkSize) {
		if i > 0 && c.cfg.ChunkDelay > 0 {
			if err := sleep(ctx, c.cfg.ChunkDelay); err != nil {
				return stateDone, err
			}
		}
		if err := c.sink.Emit(ctx, event.ResponseChunk(chunk)); err != nil {
			return stateDone, err
		}
	}

	if err := c.sink.Emit(ctx, event.ResponseEnd(answer)); err != nil {
		return stateDone, err
	}
	c.outcome = metrics.OutcomeAnswered
	return stateDone, nil
}

// fail emits the single terminal error event for err. The event is sent even
// when ctx is already cancelled.
func (c *conversation) fail(ctx context.Context, err error) error {
	var e event.Event
	switch {
	case errors.Is(err, errCapReached):
		c.outcome = metrics.OutcomeExhausted
		e = event.Failure(fmt.Sprintf("reached the maximum of %d reasoning rounds, stopping", c.cfg.MaxIterations))
	case ctx.Err() != nil:
		c.outcome = metrics.OutcomeCancelled
		e = event.Failure("request cancelled")
	default:
		c.outcome = metrics.OutcomeFailed
		e = event.Failure("error while handling the request: " + errs.Message(err))
	}
	c.finish()
	return c.sink.Emit(context.WithoutCancel(ctx), e)
}

func (c *conversation) finish() {
	c.cfg.Metrics.ConversationDone(c.outcome, c.iteration)
	c.log.Info().
		Str("outcome", c.outcome).
		Int("iterations", c.iteration).
		Int("messages", c.transcript.Len()).
		Msg("conversation finished")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
