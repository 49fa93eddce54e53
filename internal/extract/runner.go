package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"weekcal/internal/lineparse"
)

// DefaultCommand is the calendar query tool invoked by ExecRunner.
const DefaultCommand = "icalBuddy"

// ToolOutput is what one tool invocation produced. A non-zero ExitCode is
// not an error; callers keep whatever stdout was written.
type ToolOutput struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner queries the calendar store for events in [from, to).
type Runner interface {
	Run(ctx context.Context, from, to time.Time) (*ToolOutput, error)
}

// ExecRunner runs the external tool as a subprocess.
type ExecRunner struct {
	Command   string
	Delimiter string
}

// Args returns the argument list for one query window: one line per event,
// attributes in a fixed order separated by the delimiter.
func (r ExecRunner) Args(from, to time.Time) []string {
	delim := r.Delimiter
	if delim == "" {
		delim = lineparse.DefaultDelimiter
	}
	return []string{
		"-npn",
		"-nc",
		"-nrd",
		"-nnr",
		"-b", "",
		"--dateFormat", "%Y-%m-%d",
		"--timeFormat", "%H:%M",
		"-po", "title,calendarName,allDayEvent,datetime,location,notes",
		"-ps", delim,
		"eventsFrom:" + from.Format("2006-01-02"),
		"to:" + to.Format("2006-01-02"),
	}
}

// Run executes the tool. It only fails when the process could not be started
// or the context was cancelled.
func (r ExecRunner) Run(ctx context.Context, from, to time.Time) (*ToolOutput, error) {
	name := r.Command
	if name == "" {
		name = DefaultCommand
	}
	args := r.Args(from, to)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := &ToolOutput{Args: append([]string{name}, args...)}
	err := cmd.Run()
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}
