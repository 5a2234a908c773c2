package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/mush-shell/mush/internal/pipeline"
)

// Manager owns the job table and is the sole entity allowed to launch
// pipelines, reap their stages, and drain their captured output. The
// zero value is not ready to use; call Init first.
//
// Manager is an explicit value its owner constructs once and threads
// through, rather than a package of bare functions over hidden global
// state, so a process can run more than one independent job table (one
// per test, for instance) without cross-talk.
type Manager struct {
	mu          sync.Mutex
	initialized bool
	jobs        map[ID]*Job
	nextID      int64
	maxJobs     int
	captureCap  int

	wakeMu sync.Mutex
	wakeCh chan struct{}
}

// Config tunes limits a Manager enforces across its whole job table.
type Config struct {
	// MaxJobs caps how many jobs the table may hold at once, including
	// terminal jobs not yet Expunged. Zero means unlimited.
	MaxJobs int
	// CaptureBufferLimit caps the bytes any one job's captured output
	// buffer may grow to; bytes beyond the cap are read (so the
	// producing process is never blocked on a full pipe) but discarded.
	// Zero means unlimited.
	CaptureBufferLimit int
}

// ErrJobTableFull is returned by Run when Config.MaxJobs would be
// exceeded.
var ErrJobTableFull = errors.New("job: job table full")

// New returns a Manager. Call Init before using it.
func New() *Manager {
	return &Manager{}
}

// Init installs the job table with the given limits. It must be called
// exactly once before any other Manager operation.
func (m *Manager) Init(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return fmt.Errorf("job: init: %w", ErrAlreadyTerminal)
	}
	m.jobs = make(map[ID]*Job)
	m.wakeCh = make(chan struct{})
	m.maxJobs = cfg.MaxJobs
	m.captureCap = cfg.CaptureBufferLimit
	m.initialized = true
	return nil
}

// Fini cancels and waits for every non-terminal job, expunges every job,
// and tears down the table.
func (m *Manager) Fini() error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		if !j.Status().Terminal() {
			_ = m.Cancel(j.id)
			_, _ = m.Wait(j.id)
		}
	}
	for _, j := range jobs {
		_ = m.Expunge(j.id)
	}

	m.mu.Lock()
	m.initialized = false
	m.jobs = nil
	m.mu.Unlock()
	return nil
}

// Show writes one line per job: "<id>\t<pgid>\t<status>\t<pipeline>\n".
func (m *Manager) Show(w io.Writer) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		j.mu.Lock()
		line := fmt.Sprintf("%d\t%d\t%s\t%s\n", j.id, j.pgid, j.status, j.pipeline.String())
		j.mu.Unlock()
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Run launches pipeline asynchronously and returns its job id. The
// manager owns a deep copy of pipeline from this point on; the caller's
// value may be freely reused or discarded.
func (m *Manager) Run(ctx context.Context, p pipeline.Pipeline) (ID, error) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return 0, ErrNotInitialized
	}
	if m.maxJobs > 0 && len(m.jobs) >= m.maxJobs {
		m.mu.Unlock()
		return 0, fmt.Errorf("job: run: %w", ErrJobTableFull)
	}
	m.mu.Unlock()

	res, err := launchPipeline(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("job: run: %w", err)
	}

	m.mu.Lock()
	m.nextID++
	id := ID(m.nextID)
	j := &Job{
		id:       id,
		pgid:     res.pgid,
		status:   StatusRunning,
		pipeline: p.Copy(),
		captureR: res.captureR,
		done:     make(chan struct{}),
	}
	m.jobs[id] = j
	m.mu.Unlock()

	// done is only closed once both reaping and capture-draining have
	// finished, so a caller blocked in Wait never observes a terminal
	// status before GetOutput's buffer is final. waitJob and
	// drainCapture run concurrently with each other; this goroutine
	// just waits for whichever of them were started to both return.
	var finish sync.WaitGroup
	finish.Add(1)
	go func() {
		defer finish.Done()
		m.waitJob(j, res.cmds)
	}()
	if j.captureR != nil {
		finish.Add(1)
		go func() {
			defer finish.Done()
			m.drainCapture(j)
		}()
	}
	go func() {
		finish.Wait()
		close(j.done)
		m.wake()
	}()

	return id, nil
}

// waitJob reaps every stage concurrently, derives the job's overall
// terminal status from their individual exit statuses, and publishes the
// transition under j.mu. It does not itself signal Wait's callers; Run's
// finishing goroutine does that only once capture draining has also
// completed.
func (m *Manager) waitJob(j *Job, cmds []*exec.Cmd) {
	statuses := make([]RawStatus, len(cmds))
	var wg sync.WaitGroup
	wg.Add(len(cmds))
	for i, c := range cmds {
		go func(i int, c *exec.Cmd) {
			defer wg.Done()
			statuses[i] = statusFromWait(c.Wait())
		}(i, c)
	}
	wg.Wait()

	final := deriveFinal(statuses)

	j.mu.Lock()
	j.rawStatus = final
	j.status = classify(final, j.cancelRequested)
	j.mu.Unlock()

	m.wake()
}

// deriveFinal picks the pipeline's overall exit status: the last stage's
// outcome if every earlier stage already succeeded, otherwise the first
// stage that failed. A later stage's failure alone (e.g. "grep" finding
// no matches after a successful producer) is what callers expect to see
// as the pipeline's result; an earlier stage's failure is surfaced
// instead of being masked by a successful final stage.
func deriveFinal(statuses []RawStatus) RawStatus {
	n := len(statuses)
	for i := 0; i < n-1; i++ {
		if !statuses[i].Success() {
			return statuses[i]
		}
	}
	return statuses[n-1]
}

// Wait blocks until job is terminal and returns its decoded exit status.
func (m *Manager) Wait(id ID) (RawStatus, error) {
	j, err := m.lookup(id)
	if err != nil {
		return RawStatus{}, err
	}
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rawStatus, nil
}

// Poll returns the job's exit status if it is terminal, or ErrNotTerminal
// if it is still running.
func (m *Manager) Poll(id ID) (RawStatus, error) {
	j, err := m.lookup(id)
	if err != nil {
		return RawStatus{}, err
	}
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.rawStatus, nil
	default:
		return RawStatus{}, ErrNotTerminal
	}
}

// Cancel sends SIGKILL to the job's entire process group and marks it
// cancel-requested. The state transition to Canceled happens later, when
// the waiter goroutine observes the kill. A second Cancel on the same job
// fails, as does Cancel on an already-terminal job.
func (m *Manager) Cancel(id ID) error {
	j, err := m.lookup(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	if j.status.Terminal() || j.cancelRequested {
		j.mu.Unlock()
		return fmt.Errorf("job: cancel %d: %w", id, ErrAlreadyTerminal)
	}
	j.cancelRequested = true
	pgid := j.pgid
	j.mu.Unlock()

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("job: cancel %d: %w", id, err)
	}
	return nil
}

// Expunge releases a terminal job's resources (closing its capture fd if
// any) and removes it from the table. It fails if the job is still
// running or unknown.
func (m *Manager) Expunge(id ID) error {
	j, err := m.lookup(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	if !j.status.Terminal() {
		j.mu.Unlock()
		return fmt.Errorf("job: expunge %d: %w", id, ErrNotTerminal)
	}
	captureR := j.captureR
	j.mu.Unlock()

	if captureR != nil {
		_ = captureR.Close()
	}

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
	return nil
}

// GetOutput returns a borrowed view of the job's captured output so far,
// and true if the job requested capture at all (the slice may be empty
// even so). It must be called before Expunge.
func (m *Manager) GetOutput(id ID) ([]byte, bool) {
	j, err := m.lookup(id)
	if err != nil {
		return nil, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.captureR == nil {
		return nil, false
	}
	return j.captured, true
}

// Pause blocks until any job transitions (completes, is canceled, aborts,
// or appends captured output), without busy-waiting. A caller driving an
// event loop can block here between status checks instead of polling.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.mu.Unlock()

	m.wakeMu.Lock()
	ch := m.wakeCh
	m.wakeMu.Unlock()
	<-ch
	return nil
}

// wake broadcasts to anyone blocked in Pause and unblocks them exactly
// once, using the standard close-and-replace channel idiom so callers
// never need a separate "missed the broadcast" retry loop.
func (m *Manager) wake() {
	m.wakeMu.Lock()
	defer m.wakeMu.Unlock()
	close(m.wakeCh)
	m.wakeCh = make(chan struct{})
}

func (m *Manager) lookup(id ID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job: %d: %w", id, ErrUnknownJob)
	}
	return j, nil
}
