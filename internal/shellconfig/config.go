// Package shellconfig loads mush's ini-style configuration file: job
// manager tuning and logging options. The loader follows the
// open/stat/size-cap/read/parse shape used throughout the Gravwell
// ingesters, layered over the same gcfg ini parser.
package shellconfig

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

// maxConfigSize bounds how much of a config file Load will read, guarding
// against a misconfigured path pointing at something enormous.
const maxConfigSize int64 = 1 << 20 // 1MB

var (
	// ErrConfigTooLarge is returned by Load when the file exceeds maxConfigSize.
	ErrConfigTooLarge = errors.New("shellconfig: config file too large")
	// ErrShortRead is returned by Load when fewer bytes were read than stat reported.
	ErrShortRead = errors.New("shellconfig: short read of config file")
)

// Shell holds job-manager tuning knobs, passed to job.Manager.Init as a
// job.Config.
type Shell struct {
	// MaxJobs caps how many jobs the job table may hold at once. Zero
	// means unlimited.
	MaxJobs int
	// CaptureBufferLimit caps the bytes a single job's captured output
	// buffer may retain. Zero means unlimited.
	CaptureBufferLimit int
}

// Log holds logging output configuration.
type Log struct {
	// Level is a logrus level name: "debug", "info", "warn", "error".
	Level string
	// File is the path logs are appended to. Empty means stderr.
	File string
}

// Config is the top-level structure gcfg decodes the ini file into: one
// section per nested struct field, matched case-insensitively.
type Config struct {
	Shell Shell
	Log   Log
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Shell: Shell{
			MaxJobs:            0,
			CaptureBufferLimit: 0,
		},
		Log: Log{
			Level: "info",
			File:  "",
		},
	}
}

// Load reads and parses the ini file at path into a fresh Config seeded
// with Default's values (so a file that only sets [log] level leaves the
// shell section at its defaults).
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Config{}, err
	}
	if fi.Size() > maxConfigSize {
		return Config{}, ErrConfigTooLarge
	}

	buf := bytes.NewBuffer(nil)
	n, err := io.Copy(buf, f)
	if err != nil {
		return Config{}, err
	}
	if n != fi.Size() {
		return Config{}, ErrShortRead
	}

	if err := gcfg.ReadStringInto(&cfg, buf.String()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
