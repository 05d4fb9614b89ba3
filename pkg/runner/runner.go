package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
)

// Engine is the subset of the intake engine the Runner drives.
type Engine interface {
	Advance(ctx context.Context, req domain.Request) (*domain.Response, error)
	Resume(ctx context.Context, ownerID, sessionID string) (*domain.Response, error)
}

// Runner handles the conversation loop of the intake engine using provided IO.
// This allows for easy testing and integration with different frontends.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// OwnerID is the identity sent with every turn. Required.
	OwnerID string

	// SessionID resumes an existing session when set.
	SessionID string

	Sanitizer Sanitizer
}

// NewRunner creates a Runner. Without WithInputHandler it talks over Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run drives the engine until the intake completes, the input ends or the
// user quits. It returns the last response, whose SessionID can be used to
// resume later.
func (r *Runner) Run(ctx context.Context, engine Engine) (*domain.Response, error) {
	if r.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	resp, err := r.begin(ctx, engine)
	if err != nil {
		return nil, err
	}
	r.SessionID = resp.SessionID

	for {
		if err := r.Handler.Output(ctx, resp); err != nil {
			return resp, fmt.Errorf("output error: %w", err)
		}
		if resp.Complete {
			return resp, nil
		}

		line, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				r.pause(ctx, resp)
				return resp, nil
			}
			return resp, fmt.Errorf("input error: %w", err)
		}

		req, quit, err := r.request(resp, line)
		if quit {
			r.pause(ctx, resp)
			return resp, nil
		}
		if err != nil {
			_ = r.Handler.SystemOutput(ctx, err.Error())
			continue
		}

		next, err := engine.Advance(ctx, req)
		switch {
		case err == nil:
			resp = next
		case domain.IsRetryable(err):
			r.Logger.Warn("Turn not saved", "session_id", resp.SessionID, "err", err)
			_ = r.Handler.SystemOutput(ctx, "Your answer could not be saved. Please send it again.")
		case errors.Is(err, domain.ErrStalePosition):
			// Another client moved the session; catch up with it.
			if resp, err = engine.Resume(ctx, r.OwnerID, resp.SessionID); err != nil {
				return nil, err
			}
			_ = r.Handler.SystemOutput(ctx, "This intake moved on elsewhere. Continuing from there.")
		default:
			return resp, err
		}
	}
}

func (r *Runner) begin(ctx context.Context, engine Engine) (*domain.Response, error) {
	if r.SessionID != "" {
		resp, err := engine.Resume(ctx, r.OwnerID, r.SessionID)
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", r.SessionID, err)
		}
		return resp, nil
	}
	resp, err := engine.Advance(ctx, domain.Request{OwnerID: r.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("start intake: %w", err)
	}
	r.Logger.Debug("Intake started", "session_id", resp.SessionID)
	return resp, nil
}

// request turns a line into a Request. Lines starting with "/" are commands:
// /quit leaves, /optional N text answers the Nth optional prompt.
func (r *Runner) request(resp *domain.Response, line string) (domain.Request, bool, error) {
	clean, err := r.Sanitizer.Clean(line)
	if err != nil {
		return domain.Request{}, false, err
	}
	req := domain.Request{
		SessionID:    resp.SessionID,
		OwnerID:      r.OwnerID,
		Token:        resp.Token,
		LastQuestion: resp.Prompt,
		Message:      clean,
	}
	if !strings.HasPrefix(clean, "/") {
		return req, false, nil
	}

	cmd, rest, _ := strings.Cut(clean, " ")
	switch cmd {
	case "/quit", "/exit":
		return req, true, nil
	case "/optional":
		num, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 || n > len(resp.Optional) {
			return req, false, fmt.Errorf("usage: /optional <1-%d> <answer>", len(resp.Optional))
		}
		req.LastQuestion = resp.Optional[n-1]
		req.Message = strings.TrimSpace(text)
		return req, false, nil
	}
	return req, false, fmt.Errorf("unknown command %s", cmd)
}

func (r *Runner) pause(ctx context.Context, resp *domain.Response) {
	if resp.Complete {
		return
	}
	_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Progress saved. Resume with session %s.", resp.SessionID))
}
