// Package pipeline defines the AST the job manager executes: an ordered
// list of commands chained stdout-to-stdin, with an optional input-file
// redirection on the first command and an optional output-file
// redirection or capture on the last. It also makes concrete the
// eval_to_string/show_pipeline/copy_pipeline collaborators the job
// manager consumes but does not itself implement — those live with the
// lexer/parser/evaluator outside this module's scope.
package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Expr is an argument expression, evaluated to its string form immediately
// before exec. This is the eval_to_string collaborator: the concrete
// implementation (variable interpolation, command substitution, etc.)
// belongs to the expression evaluator outside this package.
type Expr interface {
	Eval(ctx context.Context) (string, error)
}

// Literal is an Expr that evaluates to a fixed string, useful for tests
// and for arguments that need no further evaluation.
type Literal string

// Eval implements Expr.
func (l Literal) Eval(context.Context) (string, error) { return string(l), nil }

// Command is a single pipeline stage: a program name plus its argument
// expressions.
type Command struct {
	Args []Expr
}

// Pipeline is an ordered sequence of commands whose standard streams are
// chained together, plus the redirection attributes that apply to its
// first and last stage.
type Pipeline struct {
	Commands []Command

	// InputFile, if non-empty, is opened and connected to the first
	// command's standard input in place of the shell's own stdin.
	InputFile string

	// OutputFile, if non-empty, is opened (created/truncated) and
	// connected to the last command's standard output.
	OutputFile string

	// CaptureOutput requests that the last command's standard output be
	// captured into the job record instead of going to the shell's own
	// stdout, readable via Manager.GetOutput. Mutually meaningful alongside OutputFile: when
	// both are set, OutputFile wins for the last stage's actual stdout
	// and capture is skipped (a pipeline cannot usefully do both at
	// once without a tee, which this spec does not provide).
	CaptureOutput bool
}

// Copy returns a deep copy of p, safe to store independently of the
// original (e.g. inside a job record) even if the caller later mutates or
// discards p. Commands and their Args slices are copied; individual Expr
// values are assumed immutable and are shared, not cloned — the same
// contract os/exec.Cmd makes for its Args.
//
// There is no corresponding Free: Go's garbage collector reclaims the
// copy once the job record holding it is dropped, so there is no need
// for an explicit paired release call.
func (p Pipeline) Copy() Pipeline {
	cp := Pipeline{
		InputFile:     p.InputFile,
		OutputFile:    p.OutputFile,
		CaptureOutput: p.CaptureOutput,
	}
	if p.Commands != nil {
		cp.Commands = make([]Command, len(p.Commands))
		for i, c := range p.Commands {
			args := make([]Expr, len(c.Args))
			copy(args, c.Args)
			cp.Commands[i] = Command{Args: args}
		}
	}
	return cp
}

// String renders the pipeline for debug/listing output (the show_pipeline
// collaborator). Argument expressions are rendered via fmt's default
// verb; a Literal renders as its plain text, and any other Expr
// implementation is expected to supply a useful String() method if it
// wants more specific rendering.
func (p Pipeline) String() string {
	var b strings.Builder
	for i, c := range p.Commands {
		if i > 0 {
			b.WriteString(" | ")
		}
		for j, a := range c.Args {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%v", a)
		}
	}
	if p.InputFile != "" {
		fmt.Fprintf(&b, " <%s", p.InputFile)
	}
	if p.OutputFile != "" {
		fmt.Fprintf(&b, " >%s", p.OutputFile)
	}
	return b.String()
}
