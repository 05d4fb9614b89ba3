package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/aretw0/intake/internal/presentation/tui"
	"github.com/aretw0/intake/pkg/runner"
)

// ChatOptions contains all the configuration for the chat command.
type ChatOptions struct {
	Owner        string
	SessionID    string
	JSON         bool
	Quiet        bool
	MaxInputSize int
	In           io.Reader
	Out          io.Writer
}

// Chat runs one intake conversation on the terminal (or JSON lines with
// opts.JSON) until it completes, the input ends or the user quits.
func Chat(ctx context.Context, app *App, opts ChatOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		var textOpts []runner.TextHandlerOption
		if f, ok := opts.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			render, err := tui.NewRenderer(terminalWidth(f))
			if err != nil {
				app.Logger.Warn("Markdown rendering disabled", "err", err)
			} else {
				textOpts = append(textOpts, runner.WithTextHandlerRenderer(render))
			}
		}
		if !opts.Quiet {
			tui.PrintBanner(opts.Out)
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, textOpts...)
	}

	r := runner.NewRunner(
		runner.WithLogger(app.Logger),
		runner.WithInputHandler(handler),
		runner.WithOwner(opts.Owner),
		runner.WithSessionID(opts.SessionID),
		runner.WithSanitizer(runner.Sanitizer{MaxSize: opts.MaxInputSize}),
	)
	resp, err := r.Run(ctx, app.Engine)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if resp.Complete && !opts.JSON && !opts.Quiet {
		printSystemMessage(opts.Out, "Event %s is ready for review.", resp.EventID)
	}
	return nil
}

func terminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, 120)
}
