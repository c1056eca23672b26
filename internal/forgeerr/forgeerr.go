// Package forgeerr defines the error taxonomy shared across the pcb-forge
// pipeline, so that a CLI can map any stage failure to the right exit code
// without sniffing error strings.
package forgeerr

import "fmt"

// Kind classifies a pipeline failure by which stage produced it.
type Kind int

const (
	// Config covers missing/malformed YAML or catalogue lookups.
	Config Kind = iota
	// Parse covers grammar or numeric-literal failures in Gerber/XNC text.
	Parse
	// Semantic covers undefined apertures/macros/variables and disallowed
	// operations (e.g. drawing a line with a non-circular aperture).
	Semantic
	// Geometry covers polygon offset/union failures and NaN coordinates.
	Geometry
	// Planner covers empty polygons, zero tool diameter, and similar.
	Planner
	// Emit covers include-file I/O and emitter state violations.
	Emit
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Parse:
		return "parse"
	case Semantic:
		return "semantic"
	case Geometry:
		return "geometry"
	case Planner:
		return "planner"
	case Emit:
		return "emit"
	default:
		return "unknown"
	}
}

// Pos locates a failure within source text.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.Line == 0 && p.Column == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is a kinded, contextual error. Wrap it with fmt.Errorf("...: %w", err)
// to extend the chain; ExitCode looks through wrapping to find it.
type Error struct {
	Kind    Kind
	File    string
	Pos     Pos
	Message string
	Cause   error
}

func (e *Error) Error() string {
	loc := e.Pos.String()
	switch {
	case e.File != "" && loc != "":
		return fmt.Sprintf("%s (%s:%s): %s", e.Message, e.File, loc, e.causeSuffix())
	case e.File != "":
		return fmt.Sprintf("%s (%s): %s", e.Message, e.File, e.causeSuffix())
	default:
		return fmt.Sprintf("%s: %s", e.Message, e.causeSuffix())
	}
}

func (e *Error) causeSuffix() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no location context.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// At builds an Error located at a source position.
func At(kind Kind, file string, pos Pos, message string, cause error) *Error {
	return &Error{Kind: kind, File: file, Pos: pos, Message: message, Cause: cause}
}

// ExitCode maps an error's Kind to a process exit code. Unrecognized errors
// (not *Error) get the generic code 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if !asError(err, &fe) {
		return 1
	}
	switch fe.Kind {
	case Config:
		return 2
	case Parse, Semantic:
		return 3
	case Geometry, Planner:
		return 4
	case Emit:
		return 5
	default:
		return 1
	}
}

// asError is a tiny errors.As shim kept local to avoid importing errors in
// this file's public surface twice; behaves identically to errors.As.
func asError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
