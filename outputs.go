package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// actionsOutput speaks the GitHub Actions workflow command protocol.
// Outside of Actions, commands are dropped and outputs are written to w.
type actionsOutput struct {
	mu         sync.Mutex
	w          io.Writer
	enabled    bool   // running under GitHub Actions
	outputFile string // value of GITHUB_OUTPUT
}

func newActionsOutput(w io.Writer) *actionsOutput {
	return &actionsOutput{
		w:          w,
		enabled:    os.Getenv("GITHUB_ACTIONS") == "true",
		outputFile: os.Getenv("GITHUB_OUTPUT"),
	}
}

func (a *actionsOutput) command(format string, args ...any) {
	if a == nil || !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.w, format+"\n", args...)
}

// mask hides each non-empty value from the job log.
func (a *actionsOutput) mask(values ...string) {
	for _, v := range values {
		if v != "" {
			a.command("::add-mask::%s", escapeData(v))
		}
	}
}

// group opens a collapsible log group and returns the func closing it.
func (a *actionsOutput) group(title string) func() {
	a.command("::group::%s", escapeData(title))
	return func() { a.command("::endgroup::") }
}

func (a *actionsOutput) errorf(format string, args ...any) {
	a.command("::error::%s", escapeData(fmt.Sprintf(format, args...)))
}

// setOutput appends name=value to the GITHUB_OUTPUT file using the
// delimiter syntax, which allows multi-line values.
func (a *actionsOutput) setOutput(name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.outputFile == "" {
		_, err := fmt.Fprintf(a.w, "%s=%s\n", name, value)
		return err
	}

	delim := "ghadelimiter_" + uuid.NewString()
	f, err := os.OpenFile(a.outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - path comes from the runner
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	_, err = fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// writeRunOutputs publishes the result flag and, if enabled, the URL map.
func writeRunOutputs(a *actionsOutput, result string, urls map[string]string) error {
	if err := a.setOutput("result", result); err != nil {
		return err
	}
	if urls == nil {
		return nil
	}
	buf, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	return a.setOutput("file-urls", string(buf))
}

func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}
