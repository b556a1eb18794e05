package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/present"
)

func handleError(w io.Writer, err error) {
	styles := present.StderrStyles()
	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		fmt.Fprintf(w, format+"%s\n\n",
			fmt.Sprintf(
				"Check out %s %s",
				styles.InlineCode.Render("mcpagent -h"),
				styles.Comment.Render("for help."),
			),
			fmt.Sprintf(ferr.ReasonFormat(), styles.InlineCode.Render(ferr.Flag())),
		)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) {
		args := []any{styles.ErrPadding.Render(styles.ErrorHeader.String(), merr.Reason)}
		if merr.Err != nil {
			format += "%s\n\n"
			args = append(args, styles.ErrPadding.Render(styles.ErrorDetails.Render(merr.Err.Error())))
		}
		fmt.Fprintf(w, format, args...)
		return
	}

	fmt.Fprintf(w, format, styles.ErrPadding.Render(styles.ErrorDetails.Render(err.Error())))
}
