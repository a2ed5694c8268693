// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	stepIndent  = 4  // spaces to indent step entries
	stepWidth   = 18 // Width for step name
	statusWidth = 10 // Width for status text
)

// 🎯 StepOperation is one workflow step as shown on the console
type StepOperation struct {
	Step   string // Step name (resolve_id, select_holding, ...)
	Status string // pass / fail / skip
	Detail string // Free text, e.g. the holding id picked
}

// 📦 RunOperation is one sync run
type RunOperation struct {
	ExternalID string
	Mode       string // api / dropbox
}

// 🎯 Console renders run progress for interactive commands
type Console struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	current *RunOperation
	steps   []StepOperation
}

// 🏭 NewConsole creates a new console
func NewConsole(console io.Writer, zlog zerolog.Logger) *Console {
	return &Console{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// ConsoleFromContext returns the console stored by NewContext
func ConsoleFromContext(ctx context.Context) (*Console, bool) {
	c, ok := ctx.Value(contextKey{}).(*Console)
	return c, ok
}

// 🎯 NewContext adds the console to context
func NewContext(ctx context.Context, c *Console) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// 📝 formatStep formats a step for display
func (c *Console) formatStep(op StepOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch op.Status {
	case "fail":
		symbol = '✗'
		symbolColor = color.FgRed
	case "pass":
		symbol = '✓'
		symbolColor = color.FgGreen
	case "skip":
		symbol = '-'
		symbolColor = color.FgYellow
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", stepIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", stepWidth, op.Step),
		color.New(color.Faint).Sprint(fmt.Sprintf("%-*s", statusWidth, op.Status)),
		op.Detail)
}

// 📝 LogStep logs a workflow step
func (c *Console) LogStep(ctx context.Context, op StepOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps = append(c.steps, op)
	fmt.Fprintln(c.console, c.formatStep(op))

	c.zlog.Debug().
		Str("step", op.Step).
		Str("status", op.Status).
		Str("detail", op.Detail).
		Msg("workflow step")
}

// 📝 StartRun prints the run header
func (c *Console) StartRun(ctx context.Context, op RunOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = &op
	c.steps = nil

	fmt.Fprintf(c.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.ExternalID),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Mode))

	c.zlog.Info().
		Str("external_id", op.ExternalID).
		Str("mode", op.Mode).
		Msg("starting sync")
}

// 📝 EndRun closes the current run
func (c *Console) EndRun(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}

	c.zlog.Info().
		Str("external_id", c.current.ExternalID).
		Int("steps", len(c.steps)).
		Msg("sync finished")

	c.current = nil
	c.steps = nil
}

// 📝 Success logs a success message
func (c *Console) Success(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	c.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (c *Console) Warning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	c.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	c.zlog.Error().Msg(msg)
}
