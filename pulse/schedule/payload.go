package schedule

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/teranos/dawn/errors"
)

// Payload is the external task dawn schedules. It is opaque: judged only by exit code.
type Payload struct {
	Argv    []string // executable followed by its arguments
	Dir     string   // working directory; empty = current
	EnvFile string   // optional dotenv file filling in variables the environment lacks
}

// Result captures one payload run.
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr
	Duration time.Duration
}

// Succeeded reports whether the payload exited zero.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Environment returns the inherited environment plus the env file's
// variables. Variables already set in the inherited environment win.
func (p Payload) Environment() ([]string, error) {
	env := os.Environ()
	vars, err := LoadEnvFile(p.EnvFile)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		if _, set := os.LookupEnv(k); !set {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

// LoadEnvFile reads a dotenv file. An empty path or a missing file yields no variables.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read env file %s", path)
	}
	return vars, nil
}

// ResolveExecutable returns the absolute path of the payload executable.
func (p Payload) ResolveExecutable() (string, error) {
	if len(p.Argv) == 0 {
		return "", errors.Wrap(errors.ErrInvalidConfig, "payload command is empty")
	}
	path, err := exec.LookPath(p.Argv[0])
	if err != nil {
		return "", errors.WithHint(
			errors.Wrapf(err, "payload executable %s not found", p.Argv[0]),
			"check job.payload_command in ~/.dawn/am.toml",
		)
	}
	return path, nil
}

// Run executes the payload synchronously, copying its output to w as it runs
// when w is non-nil. The returned error is non-nil only when the payload could
// not be started or was cancelled; a non-zero exit is reported in Result.
func (p Payload) Run(ctx context.Context, w io.Writer) (*Result, error) {
	if len(p.Argv) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "payload command is empty")
	}

	env, err := p.Environment()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	out := io.Writer(&buf)
	if w != nil {
		out = io.MultiWriter(&buf, w)
	}

	cmd := exec.CommandContext(ctx, p.Argv[0], p.Argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = env
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err = cmd.Run()
	result := &Result{
		ExitCode: -1,
		Output:   buf.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, errors.Wrap(ctx.Err(), "payload cancelled")
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, errors.Wrapf(err, "failed to start payload %s", p.Argv[0])
	}
	return result, nil
}
