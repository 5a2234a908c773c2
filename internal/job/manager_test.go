package job_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mush-shell/mush/internal/job"
	"github.com/mush-shell/mush/internal/pipeline"
)

// lit is a shorthand for building a pipeline.Literal expression slice.
func lit(args ...string) []pipeline.Expr {
	out := make([]pipeline.Expr, len(args))
	for i, a := range args {
		out[i] = pipeline.Literal(a)
	}
	return out
}

func newManager(t *testing.T) *job.Manager {
	t.Helper()
	m := job.New()
	require.NoError(t, m.Init(job.Config{}))
	t.Cleanup(func() { _ = m.Fini() })
	return m
}

func TestRunAssignsMonotonicUniqueIDs(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}

	id1, err := m.Run(ctx, p)
	require.NoError(t, err)
	id2, err := m.Run(ctx, p)
	require.NoError(t, err)

	assert.Less(t, int64(id1), int64(id2))

	_, _ = m.Wait(id1)
	_, _ = m.Wait(id2)
}

func TestWaitReportsSuccess(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.True(t, rs.Success())
}

func TestWaitIsIdempotent(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs1, err := m.Wait(id)
	require.NoError(t, err)
	rs2, err := m.Wait(id)
	require.NoError(t, err)
	assert.Equal(t, rs1, rs2)
}

func TestFailingStageIsAborted(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sh", "-c", "exit 3")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.False(t, rs.Success())
	assert.True(t, rs.Exited)
	assert.Equal(t, 3, rs.ExitCode)

	var buf strings.Builder
	require.NoError(t, m.Show(&buf))
	assert.Contains(t, buf.String(), "\taborted\t")
}

func TestPipelineFinalStatusUsesLastStageWhenEarlierStagesSucceed(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{
		{Args: lit("true")},
		{Args: lit("sh", "-c", "exit 7")},
	}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.Equal(t, 7, rs.ExitCode)
}

func TestPipelineFinalStatusUsesFirstFailingStage(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{
		{Args: lit("sh", "-c", "exit 5")},
		{Args: lit("true")},
	}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.Equal(t, 5, rs.ExitCode)
}

func TestPollBeforeTerminalReturnsErrNotTerminal(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sleep", "0.2")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	_, err = m.Poll(id)
	assert.ErrorIs(t, err, job.ErrNotTerminal)

	_, _ = m.Wait(id)

	rs, err := m.Poll(id)
	require.NoError(t, err)
	assert.True(t, rs.Success())
}

func TestCancelKillsEntirePipeline(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sleep", "5")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(id))

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.True(t, rs.Signaled)
}

func TestCancelTwiceFails(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sleep", "5")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(id))
	_, _ = m.Wait(id)

	err = m.Cancel(id)
	assert.ErrorIs(t, err, job.ErrAlreadyTerminal)
}

func TestExpungeBeforeTerminalFails(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sleep", "0.2")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	err = m.Expunge(id)
	assert.ErrorIs(t, err, job.ErrNotTerminal)

	_, _ = m.Wait(id)
	require.NoError(t, m.Expunge(id))

	_, err = m.Poll(id)
	assert.ErrorIs(t, err, job.ErrUnknownJob)
}

func TestCaptureOutputIsComplete(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{
		Commands:      []pipeline.Command{{Args: lit("sh", "-c", "printf 'one\\ntwo\\n'")}},
		CaptureOutput: true,
	}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	_, err = m.Wait(id)
	require.NoError(t, err)

	out, ok := m.GetOutput(id)
	require.True(t, ok)
	assert.Equal(t, "one\ntwo\n", string(out))
}

func TestGetOutputFalseWhenCaptureNotRequested(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)
	_, _ = m.Wait(id)

	_, ok := m.GetOutput(id)
	assert.False(t, ok)
}

func TestShowFormatsOneLinePerJob(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)
	_, _ = m.Wait(id)

	var buf strings.Builder
	require.NoError(t, m.Show(&buf))

	line := buf.String()
	assert.Regexp(t, `^\d+\t-?\d+\t\w+\ttrue\n$`, line)
	_ = id
}

func TestPauseUnblocksOnJobCompletion(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}}

	done := make(chan struct{})
	go func() {
		_ = m.Pause()
		close(done)
	}()

	_, err := m.Run(ctx, p)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pause did not return after a job completed")
	}
}

func TestRunOnUninitializedManagerFails(t *testing.T) {
	m := job.New()
	_, err := m.Run(context.Background(), pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("true")}}})
	assert.ErrorIs(t, err, job.ErrNotInitialized)
}

func TestUnknownJobIDFails(t *testing.T) {
	m := newManager(t)
	_, err := m.Wait(job.ID(999999))
	assert.ErrorIs(t, err, job.ErrUnknownJob)
}

func TestRunRejectsOverMaxJobs(t *testing.T) {
	m := job.New()
	require.NoError(t, m.Init(job.Config{MaxJobs: 1}))
	t.Cleanup(func() { _ = m.Fini() })
	ctx := context.Background()

	p := pipeline.Pipeline{Commands: []pipeline.Command{{Args: lit("sleep", "0.2")}}}
	id1, err := m.Run(ctx, p)
	require.NoError(t, err)

	_, err = m.Run(ctx, p)
	assert.ErrorIs(t, err, job.ErrJobTableFull)

	_, _ = m.Wait(id1)
	require.NoError(t, m.Expunge(id1))

	id2, err := m.Run(ctx, p)
	require.NoError(t, err)
	_, _ = m.Wait(id2)
}

func TestCaptureBufferLimitTruncatesButDoesNotBlock(t *testing.T) {
	m := job.New()
	require.NoError(t, m.Init(job.Config{CaptureBufferLimit: 4}))
	t.Cleanup(func() { _ = m.Fini() })
	ctx := context.Background()

	p := pipeline.Pipeline{
		Commands:      []pipeline.Command{{Args: lit("sh", "-c", "printf '1234567890'")}},
		CaptureOutput: true,
	}
	id, err := m.Run(ctx, p)
	require.NoError(t, err)

	rs, err := m.Wait(id)
	require.NoError(t, err)
	assert.True(t, rs.Success())

	out, ok := m.GetOutput(id)
	require.True(t, ok)
	assert.Equal(t, "1234", string(out))
}
