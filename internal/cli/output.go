package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario or assertion failure
	ExitCommandError = 2 // Command error (bad paths, unreadable journal, etc.)
)

// Error codes carried in JSON error responses.
const (
	ErrCodeLoad       = "E_LOAD"
	ErrCodeExecution  = "E_EXECUTION"
	ErrCodeJournal    = "E_JOURNAL"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// IsJSON reports whether JSON output was requested.
func (f *OutputFormatter) IsJSON() bool { return f.Format == "json" }

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`           // "ok" or "error"
	Data   any       `json:"data,omitempty"`   // success payload
	Error  *CLIError `json:"error,omitempty"`  // error details
	RunID  string    `json:"run_id,omitempty"` // journal run the output belongs to
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E_LOAD", "E_TEST_FAILED", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err as a JSON error response when the format is json and
// returns it wrapped with exitCode. Text mode leaves printing to the caller.
func (f *OutputFormatter) Fail(exitCode int, errCode, message string, err error) error {
	if f.IsJSON() {
		if werr := f.Error(errCode, message, err.Error()); werr != nil {
			return werr
		}
	}
	return WrapExitError(exitCode, message, err)
}

// Response writes a full response as indented JSON.
func (f *OutputFormatter) Response(resp CLIResponse) error {
	return f.encode(resp)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// configureLogging installs the default slog handler: text on w, debug
// level when verbose.
func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
