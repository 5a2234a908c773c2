// Command mush is a thin demonstration harness over the shell's three
// execution-core packages: it reads one pipeline specification per
// invocation (the real lexer/parser/REPL loop is out of scope), runs it
// through the job manager, and prints its lifecycle the way the shell's
// interactive loop would.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mush-shell/mush/internal/job"
	"github.com/mush-shell/mush/internal/pipeline"
	"github.com/mush-shell/mush/internal/program"
	"github.com/mush-shell/mush/internal/shellconfig"
	"github.com/mush-shell/mush/internal/shelllog"
	"github.com/mush-shell/mush/internal/variables"
)

func run() int {
	var (
		configPath string
		capture    bool
		outputFile string
		inputFile  string
	)

	root := &cobra.Command{
		Use:   "mush [flags] -- command [args...] [| command [args...]]...",
		Short: "run a single pipeline through the mush execution core",
		Long: `mush wires the variable store, program store, and job manager
together into a minimal one-shot runner. It exists to exercise those
packages end to end; it does not parse shell syntax, expand variables, or
offer a REPL loop.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args, configPath, capture, inputFile, outputFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to an ini config file (internal/shellconfig)")
	flags.BoolVar(&capture, "capture", false, "capture the last stage's standard output instead of inheriting the terminal")
	flags.StringVar(&inputFile, "input", "", "redirect the first stage's stdin from this file")
	flags.StringVar(&outputFile, "output", "", "redirect the last stage's stdout to this file")

	root.AddCommand(versionCmd(), varsCmd(), programCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mush:", err)
		return 1
	}
	return 0
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the mush version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "mush (execution core demo)")
			return err
		},
	}
}

// varsCmd demonstrates internal/variables in isolation: each "name=value"
// (or bare "name" to unset) operand is applied in order, then the
// resulting table is printed with Store.Show.
func varsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vars [name=value|name]...",
		Short: "apply variable assignments and print the resulting table",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := variables.New()
			for _, a := range args {
				name, value, hasValue := strings.Cut(a, "=")
				var err error
				if hasValue {
					err = store.SetString(name, value)
				} else {
					err = store.Unset(name)
				}
				if err != nil {
					return fmt.Errorf("apply %q: %w", a, err)
				}
			}
			return store.Show(cmd.OutOrStdout())
		},
	}
}

// programCmd demonstrates internal/program in isolation: each operand is
// "lineno:text", inserted as an opaque statement in line-number order,
// then listed with the cursor left at the last inserted line.
func programCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "program lineno:text...",
		Short: "insert numbered statements and list the resulting program",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := program.New()
			var last int
			for _, a := range args {
				linenoStr, text, ok := strings.Cut(a, ":")
				if !ok {
					return fmt.Errorf("argument %q: want lineno:text", a)
				}
				lineno, err := strconv.Atoi(linenoStr)
				if err != nil {
					return fmt.Errorf("argument %q: %w", a, err)
				}
				if err := store.Insert(lineno, text); err != nil {
					return fmt.Errorf("insert line %d: %w", lineno, err)
				}
				last = lineno
			}
			if _, ok := store.Goto(last); !ok {
				store.Reset()
			}
			return store.List(cmd.OutOrStdout(), func(w io.Writer, stmt program.Statement) error {
				_, err := fmt.Fprintf(w, "%v\n", stmt)
				return err
			})
		},
	}
}

// splitPipeline turns "cmd a b | cmd2 c" style argv (already split on
// spaces by the shell that invoked mush, since there is no lexer here)
// into pipeline stages, breaking at literal "|" arguments.
func splitPipeline(args []string) pipeline.Pipeline {
	var p pipeline.Pipeline
	var stage []pipeline.Expr
	flush := func() {
		if len(stage) > 0 {
			p.Commands = append(p.Commands, pipeline.Command{Args: stage})
			stage = nil
		}
	}
	for _, a := range args {
		if a == "|" {
			flush()
			continue
		}
		stage = append(stage, pipeline.Literal(a))
	}
	flush()
	return p
}

func runPipeline(cmd *cobra.Command, args []string, configPath string, capture bool, inputFile, outputFile string) error {
	cfg := shellconfig.Default()
	if configPath != "" {
		loaded, err := shellconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	log := shelllog.New(cfg.Log)

	mgr := job.New()
	jobCfg := job.Config{
		MaxJobs:            cfg.Shell.MaxJobs,
		CaptureBufferLimit: cfg.Shell.CaptureBufferLimit,
	}
	if err := mgr.Init(jobCfg); err != nil {
		return fmt.Errorf("init job manager: %w", err)
	}
	defer mgr.Fini()

	p := splitPipeline(args)
	p.CaptureOutput = capture
	p.InputFile = inputFile
	p.OutputFile = outputFile

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			cancel()
		}
	}()

	id, err := mgr.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	log.WithField("job", id).WithField("pipeline", p.String()).Info("launched")

	rs, err := mgr.Wait(id)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}

	if capture {
		if out, ok := mgr.GetOutput(id); ok {
			os.Stdout.Write(out)
		}
	}

	log.WithField("job", id).
		WithField("exited", rs.Exited).
		WithField("exit_code", rs.ExitCode).
		WithField("signaled", rs.Signaled).
		Info("finished")

	if !rs.Success() {
		return fmt.Errorf("pipeline did not succeed: %+v", rs)
	}
	return nil
}

func main() {
	os.Exit(run())
}
