//go:build !windows

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/mush-shell/mush/internal/pipeline"
)

// ErrEmptyPipeline is returned by Manager.Run when the pipeline has no
// commands.
var ErrEmptyPipeline = errors.New("job: pipeline has no commands")

// launchResult holds everything the manager needs to track a launched
// pipeline: the process-group id (the first stage's pid), every stage's
// *exec.Cmd (for Wait), and the capture pipe's read end, if requested.
type launchResult struct {
	pgid     int
	cmds     []*exec.Cmd
	captureR *os.File
}

func evalArgs(ctx context.Context, exprs []pipeline.Expr) ([]string, error) {
	argv := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := e.Eval(ctx)
		if err != nil {
			return nil, fmt.Errorf("evaluate argument %d: %w", i, err)
		}
		argv[i] = s
	}
	return argv, nil
}

// launchPipeline starts every stage of p under one process group: every
// stage beyond the first joins the first stage's process group
// (SysProcAttr.Pgid = pgid), so a single kill(-pgid, SIGKILL) reaches the
// whole pipeline. Every opened file and every pipe end the parent does
// not need past Start() is closed before launchPipeline returns, on both
// the success and error paths.
func launchPipeline(ctx context.Context, p pipeline.Pipeline) (res launchResult, err error) {
	if len(p.Commands) == 0 {
		return launchResult{}, ErrEmptyPipeline
	}

	var toReap []*exec.Cmd
	var stdin, stdoutFile, captureW, captureR *os.File
	abort := func(cause error) (launchResult, error) {
		for _, f := range []*os.File{stdin, stdoutFile, captureW, captureR} {
			if f != nil {
				_ = f.Close()
			}
		}
		if res.pgid != 0 {
			_ = syscall.Kill(-res.pgid, syscall.SIGKILL)
		}
		for _, c := range toReap {
			go func(c *exec.Cmd) { _ = c.Wait() }(c)
		}
		return launchResult{}, cause
	}

	if p.InputFile != "" {
		f, oerr := os.Open(p.InputFile)
		if oerr != nil {
			return abort(fmt.Errorf("open input file %q: %w", p.InputFile, oerr))
		}
		stdin = f
	}

	if p.OutputFile != "" {
		f, oerr := os.OpenFile(p.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if oerr != nil {
			if stdin != nil {
				stdin.Close()
			}
			return abort(fmt.Errorf("open output file %q: %w", p.OutputFile, oerr))
		}
		stdoutFile = f
	}

	if p.CaptureOutput && stdoutFile == nil {
		cr, cw, perr := os.Pipe()
		if perr != nil {
			if stdin != nil {
				stdin.Close()
			}
			if stdoutFile != nil {
				stdoutFile.Close()
			}
			return abort(fmt.Errorf("create capture pipe: %w", perr))
		}
		captureR, captureW = cr, cw
	}

	cmds := make([]*exec.Cmd, len(p.Commands))
	var prevR *os.File

	for i, c := range p.Commands {
		argv, everr := evalArgs(ctx, c.Args)
		if everr != nil {
			if prevR != nil {
				prevR.Close()
			}
			return abort(everr)
		}
		if len(argv) == 0 {
			if prevR != nil {
				prevR.Close()
			}
			return abort(fmt.Errorf("command %d: %w", i, errors.New("no arguments")))
		}

		cmd := exec.Command(argv[0], argv[1:]...)

		switch {
		case i == 0 && stdin != nil:
			cmd.Stdin = stdin
		case i == 0:
			cmd.Stdin = os.Stdin
		default:
			cmd.Stdin = prevR
		}

		last := i == len(p.Commands)-1
		var myW, nextR *os.File
		switch {
		case last && stdoutFile != nil:
			cmd.Stdout = stdoutFile
		case last && captureW != nil:
			cmd.Stdout = captureW
		case last:
			cmd.Stdout = os.Stdout
		default:
			r, w, perr := os.Pipe()
			if perr != nil {
				if prevR != nil {
					prevR.Close()
				}
				return abort(fmt.Errorf("stage %d pipe: %w", i, perr))
			}
			cmd.Stdout = w
			myW, nextR = w, r
		}
		cmd.Stderr = os.Stderr

		if i == 0 {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		} else {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: res.pgid}
		}

		if serr := cmd.Start(); serr != nil {
			if myW != nil {
				myW.Close()
			}
			if nextR != nil {
				nextR.Close()
			}
			if prevR != nil {
				prevR.Close()
			}
			return abort(fmt.Errorf("start stage %d: %w", i, serr))
		}
		cmds[i] = cmd
		toReap = append(toReap, cmd)

		if i == 0 {
			res.pgid = cmd.Process.Pid
		}

		// The parent's copies of fds the child now owns are closed
		// immediately so EOF propagates correctly down the pipeline.
		if prevR != nil {
			prevR.Close()
		}
		if myW != nil {
			myW.Close()
		}
		if i == 0 && stdin != nil {
			stdin.Close()
		}
		if last {
			if stdoutFile != nil {
				stdoutFile.Close()
			}
			if captureW != nil {
				captureW.Close()
			}
		}

		prevR = nextR
	}

	res.cmds = cmds
	res.captureR = captureR
	return res, nil
}
