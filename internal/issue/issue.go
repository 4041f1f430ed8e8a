// SPDX-License-Identifier: MPL-2.0

// Package issue defines banderole's error taxonomy and the actionable error
// type rendered to users.
//
// Every failure belongs to one of four kinds. The kind decides how callers
// react: build and format problems are reported and abandoned, cache
// problems discard partial state, and launch problems take a distinct exit
// path because the artifact itself is healthy.
package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Kind sentinels. Wrap them so errors.Is can route on failure class without
// string matching.
var (
	// ErrBuild marks failures while composing an artifact: unreadable
	// sources, missing stubs, archive write problems.
	ErrBuild = errors.New("build failed")

	// ErrFormat marks a malformed or corrupt artifact: bad trailer, hash
	// mismatch, broken payload. The artifact must be rebuilt.
	ErrFormat = errors.New("artifact format invalid")

	// ErrCache marks extraction cache failures: unwritable cache root,
	// filesystem errors during extraction.
	ErrCache = errors.New("extraction cache failure")

	// ErrLaunch marks failures after a complete cache entry was found but
	// the bundled process could not be started. Never retried.
	ErrLaunch = errors.New("launch failed")
)

type (
	// Error is an actionable error with structured context for user-facing
	// messages: the failure kind, what was being attempted, the resource
	// involved and optional remediation hints.
	Error struct {
		// Kind is one of the sentinel errors above (optional).
		Kind error

		// Operation describes what was being attempted (e.g. "resolve node
		// version", "extract payload").
		Operation string

		// Resource identifies the file, path, or entity involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error that triggered this one (optional).
		Cause error
	}

	// Context is a builder for constructing Error values incrementally.
	//
	//	return issue.New(issue.ErrBuild).
	//		WithOperation("read package.json").
	//		WithResource(pkgPath).
	//		WithSuggestion("Run the command inside a Node.js project").
	//		Wrap(err).
	//		BuildError()
	Context struct {
		kind        error
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// New creates a Context builder for the given failure kind.
func New(kind error) *Context {
	return &Context{kind: kind}
}

// Wrap wraps an error with a kind and operation.
// This is a shorthand for common wrapping patterns.
func Wrap(err, kind error, operation string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Operation: operation, Cause: err}
}

// WrapResource is Wrap with the involved resource attached.
func WrapResource(err, kind error, operation, resource string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Operation: operation, Resource: resource, Cause: err}
}

// Error implements the error interface.
// Returns a concise message suitable for default (non-verbose) output.
func (e *Error) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}

	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

// Unwrap returns the underlying cause for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the error's kind sentinel, so errors.Is(err, issue.ErrFormat)
// works regardless of what the cause chain holds.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// Format returns a formatted error message with optional verbosity.
//
// When verbose is false:
//
//	failed to <operation>: <resource>: <cause message>
//	  • <suggestion 1>
//	  • <suggestion 2>
//
// When verbose is true, additionally includes the full error chain.
func (e *Error) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// HasSuggestions returns true if the error has any suggestions.
func (e *Error) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// --- Context Methods ---

// WithOperation sets the operation being performed.
// The operation should be a verb phrase like "extract payload".
func (c *Context) WithOperation(op string) *Context {
	c.operation = op
	return c
}

// WithResource sets the resource (file, path, entity) involved.
func (c *Context) WithResource(res string) *Context {
	c.resource = res
	return c
}

// WithSuggestion adds a suggestion for how to fix the issue.
// Can be called multiple times to add multiple suggestions.
func (c *Context) WithSuggestion(sug string) *Context {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions adds multiple suggestions at once.
func (c *Context) WithSuggestions(sugs ...string) *Context {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *Context) Wrap(err error) *Context {
	c.cause = err
	return c
}

// Build creates an Error from the context.
// Returns nil if no operation is set (operation is required).
func (c *Context) Build() *Error {
	if c.operation == "" {
		return nil
	}

	return &Error{
		Kind:        c.kind,
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError creates an Error and returns it as an error interface.
// This is a convenience method for direct use in return statements.
// Returns nil if no operation is set.
func (c *Context) BuildError() error {
	e := c.Build()
	if e == nil {
		return nil
	}
	return e
}
