package present

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dotcommander/mcpagent/internal/event"
)

const maxResultPreview = 120

// RenderOptions controls a Renderer.
type RenderOptions struct {
	// Markdown renders the final answer with glamour once it is complete.
	// Otherwise chunks are written as they arrive.
	Markdown bool
	WordWrap int
	// Quiet hides progress lines.
	Quiet bool
}

// Renderer is an event.Sink that writes progress to one writer and the
// answer to another.
type Renderer struct {
	out      io.Writer
	progress io.Writer
	styles   Styles
	opts     RenderOptions

	tools   map[string]string
	failure string
}

// NewRenderer creates a Renderer writing the answer to out and progress
// lines, styled with styles, to progress.
func NewRenderer(out, progress io.Writer, styles Styles, opts RenderOptions) *Renderer {
	return &Renderer{
		out:      out,
		progress: progress,
		styles:   styles,
		opts:     opts,
		tools:    map[string]string{},
	}
}

// Failure returns the content of the terminal error event, if one was seen.
func (r *Renderer) Failure() string {
	return r.failure
}

// Emit implements event.Sink.
func (r *Renderer) Emit(_ context.Context, e event.Event) error {
	switch e.Type {
	case event.TypeStatus, event.TypeToolPlan:
		r.note(r.styles.Comment.Render(e.Content))
	case event.TypeToolStart:
		r.tools[e.ToolID] = e.ToolName
		r.note(fmt.Sprintf("  %s %s %s",
			r.styles.Tool.Render(e.ToolName),
			r.styles.Comment.Render(compactArgs(e.ToolArgs)),
			r.styles.Comment.Render("["+e.Progress+"]"),
		))
	case event.TypeToolEnd:
		r.note(fmt.Sprintf("  %s %s %s",
			r.styles.ToolOK.String(),
			r.styles.Tool.Render(e.ToolName),
			r.styles.Comment.Render(preview(e.Result)),
		))
	case event.TypeToolError:
		r.note(fmt.Sprintf("  %s %s %s",
			r.styles.ToolFailed.String(),
			r.styles.Tool.Render(r.tools[e.ToolID]),
			e.Error,
		))
	case event.TypeResponseChunk:
		if !r.opts.Markdown {
			_, err := io.WriteString(r.out, e.Content)
			return err
		}
	case event.TypeResponseEnd:
		return r.answer(e.Content)
	case event.TypeError:
		r.failure = e.Content
	}
	return nil
}

func (r *Renderer) answer(full string) error {
	if r.opts.Markdown {
		rendered, err := RenderMarkdown(full, r.opts.WordWrap)
		if err == nil {
			_, err = io.WriteString(r.out, rendered)
			return err
		}
		// fall back to the raw answer
		if _, err := io.WriteString(r.out, full); err != nil {
			return err
		}
	}
	if !strings.HasSuffix(full, "\n") {
		_, err := io.WriteString(r.out, "\n")
		return err
	}
	return nil
}

func (r *Renderer) note(line string) {
	if r.opts.Quiet {
		return
	}
	_, _ = fmt.Fprintln(r.progress, line)
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(b)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxResultPreview {
		return s
	}
	return string(runes[:maxResultPreview-1]) + "…"
}
