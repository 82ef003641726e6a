package transform

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// PathEnv names the variable carrying the relative path of the file being transformed.
const PathEnv = "SIFT_PATH"

// stderrTail bounds how much of stderr is attached to a failure.
const stderrTail = 4096

var _ ports.Transformer = (*Command)(nil)

// Command pipes file contents through an external process.
// The contents are written to stdin and stdout becomes the new contents.
type Command struct {
	argv    []string
	env     map[string]string
	workDir string
	logger  ports.Logger
}

// NewCommand creates a Command transformer running argv in workDir.
// env entries override the inherited process environment.
func NewCommand(argv []string, env map[string]string, workDir string, logger ports.Logger) (*Command, error) {
	if len(argv) == 0 {
		return nil, zerr.Wrap(domain.ErrInvalidConfig, "command transform requires cmd")
	}
	return &Command{argv: argv, env: env, workDir: workDir, logger: logger}, nil
}

// ProcessString implements ports.Transformer.
func (c *Command) ProcessString(ctx context.Context, contents, relativePath string) (string, error) {
	name := c.argv[0]
	args := c.argv[1:]

	cmdEnv := resolveEnvironment(os.Environ(), c.env, relativePath)

	// Resolve the executable against the PATH the command will see.
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // user provided command
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	cmd.Dir = c.workDir
	cmd.Env = cmdEnv
	cmd.Stdin = strings.NewReader(contents)

	var stdout bytes.Buffer
	stderr := &lineWriter{logger: c.logger, path: relativePath}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stderr.Flush()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode), "stderr", stderr.Tail())
	}

	return stdout.String(), nil
}

// lineWriter forwards complete stderr lines to the logger and keeps a bounded tail.
type lineWriter struct {
	logger ports.Logger
	path   string

	mu      sync.Mutex
	pending []byte
	tail    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tail = append(w.tail, p...)
	if len(w.tail) > stderrTail {
		w.tail = w.tail[len(w.tail)-stderrTail:]
	}

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.emit(string(w.pending))
		w.pending = nil
	}
}

// Tail returns the last bytes written to stderr.
func (w *lineWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.tail))
}

func (w *lineWriter) emit(line string) {
	if w.logger == nil || line == "" {
		return
	}
	w.logger.Warn(line, "path", w.path)
}

// resolveEnvironment merges the system environment with the configured
// overrides and the path of the file being transformed.
func resolveEnvironment(sysEnv []string, overrides map[string]string, relativePath string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(overrides)+1)
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range overrides {
		envMap[k] = v
	}
	envMap[PathEnv] = relativePath

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
