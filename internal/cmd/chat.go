package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/present"
)

const defaultWordWrap = 80

func newChatCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Answer one prompt, using the discovered tools",
		Long:  "Answer one prompt from the arguments and/or standard input. Tool progress goes to stderr, the answer to stdout.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&rt.flags.raw, "raw", "r", false, flagUsage("raw"))
	flags.IntVar(&rt.flags.wordWrap, "word-wrap", defaultWordWrap, flagUsage("word-wrap"))
	flags.IntVar(&rt.flags.maxIterations, "max-iterations", 0, flagUsage("max-iterations"))
	flags.Var(newDurationFlag(0, &rt.flags.chunkDelay), "chunk-delay", flagUsage("chunk-delay"))
	return cmd
}

func (rt *runtime) runChat(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	prompt, err := readPrompt(in, args)
	if err != nil {
		return errs.Wrap(err, "Could not read the prompt from STDIN.")
	}
	if prompt == "" {
		return errs.Error{
			Reason: "You haven't provided any prompt input.",
			Err: errs.UserErrorf(
				"You can give your prompt as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StderrStyles().InlineCode.Render("mcpagent chat [prompt]"),
			),
		}
	}

	log := rt.logger()
	cat, err := rt.discover(ctx, log, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := cat.Close(); err != nil {
			log.Warn().Err(err).Msg("closing MCP connections")
		}
	}()

	loop, err := rt.newLoop(ctx, cat, log, nil)
	if err != nil {
		return err
	}

	r := present.NewRenderer(out, os.Stderr, present.StderrStyles(), present.RenderOptions{
		Markdown: out == io.Writer(os.Stdout) && present.IsOutputTTY() && !rt.flags.raw,
		WordWrap: rt.flags.wordWrap,
		Quiet:    rt.cfg.Quiet,
	})
	if err := loop.Run(ctx, prompt, r); err != nil {
		return fmt.Errorf("write answer: %w", err)
	}
	if failure := r.Failure(); failure != "" {
		return errs.Error{Err: errors.New(failure), Reason: "The conversation ended without an answer."}
	}
	return nil
}
