package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/OCAP2/annotator/internal/dispatcher"
	"github.com/OCAP2/annotator/internal/model/core"
	"github.com/OCAP2/annotator/internal/session"
	"github.com/OCAP2/annotator/internal/task"
	"github.com/OCAP2/annotator/internal/util"
)

// Script-only commands, handled before the dispatcher.
const (
	cmdPrompt         = ":PROMPT:"
	cmdPreviewAdvance = ":PREVIEW:ADVANCE:"
)

// scriptUI answers text prompts from the script and prints notifications.
type scriptUI struct {
	mu     sync.Mutex
	answer *string
	a      *app
}

// expect queues the answer for the next text prompt.
func (u *scriptUI) expect(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.answer = &text
}

func (u *scriptUI) PromptText() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.answer == nil {
		return "", false
	}
	text := *u.answer
	u.answer = nil
	return text, true
}

func (u *scriptUI) StyleChanged(style core.Style) {
	u.a.log.Debug("style changed", "color", style.Color, "width", style.Width)
}

func (u *scriptUI) Notify(msg string) {
	fmt.Fprintln(u.a.stderr, msg)
}

// replay feeds every line of the script at path through one session.
// Debounced resizes are drained after each line, so a script behaves the
// same however fast it runs.
func (a *app) replay(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()

	d, err := dispatcher.New(a.disp)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	var ctrl *session.Controller
	a.slogs.WithContext(func() []slog.Attr {
		if ctrl == nil {
			return nil
		}
		return ctrl.LogContext()
	})
	mailbox := task.NewMailbox()
	ui := &scriptUI{a: a}
	ctrl = a.newSession(ui, d, mailbox.Post, a.slogs.Component("session"))
	defer ctrl.Close()
	ctrl.RegisterHandlers(ctx, d)

	var failed int
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		command, args, ok, err := util.ParseLine(scanner.Text())
		if err == nil && ok {
			err = a.step(d, ctrl, ui, command, args)
		}
		ctrl.FlushResize()
		mailbox.Drain()

		if err != nil {
			failed++
			a.log.Warn("script line failed", "line", n, "error", err)
			fmt.Fprintf(a.stderr, "%s:%d: %v\n", path, n, err)
			if a.strict {
				return fmt.Errorf("replay stopped at line %d", n)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	a.log.Info("replay finished", "script", path, "failed", failed,
		"annotations", len(ctrl.Annotations()), "deferred", mailbox.Posted())
	if failed > 0 {
		return fmt.Errorf("%d script lines failed", failed)
	}
	return nil
}

func (a *app) step(d *dispatcher.Dispatcher, ctrl *session.Controller, ui *scriptUI, command string, args []string) error {
	switch command {
	case cmdPrompt:
		ui.expect(strings.Join(args, " "))
		return nil
	case cmdPreviewAdvance:
		t, err := dispatcher.Event{Command: command, Args: args}.Float(0)
		if err != nil {
			return err
		}
		return ctrl.AdvancePreview(t)
	}

	out, err := d.Dispatch(dispatcher.Event{Command: command, Args: args})
	if err != nil {
		return err
	}
	if s, ok := out.(string); ok && s != "" {
		fmt.Fprintln(a.stdout, s)
	}
	return nil
}
