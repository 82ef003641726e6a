package transform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sift/internal/adapters/transform"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func TestCommand_PipesContents(t *testing.T) {
	c, err := transform.NewCommand([]string{"tr", "a-z", "A-Z"}, nil, t.TempDir(), nil)
	require.NoError(t, err)

	got, err := c.ProcessString(context.Background(), "dogs\n", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "DOGS\n", got)
}

func TestCommand_EnvironmentVariables(t *testing.T) {
	c, err := transform.NewCommand(
		[]string{"sh", "-c", `printf '%s:%s' "$GREETING" "$` + transform.PathEnv + `"`},
		map[string]string{"GREETING": "hello"},
		t.TempDir(),
		nil,
	)
	require.NoError(t, err)

	got, err := c.ProcessString(context.Background(), "", "docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello:docs/a.md", got)
}

func TestCommand_WorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "header.txt"), []byte("HEADER|"), 0o600))

	c, err := transform.NewCommand([]string{"sh", "-c", "cat header.txt -"}, nil, tmpDir, nil)
	require.NoError(t, err)

	got, err := c.ProcessString(context.Background(), "body", "a.md")
	require.NoError(t, err)
	assert.Equal(t, "HEADER|body", got)
}

func TestCommand_StderrIsLoggedPerLine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn("line1", "path", "a.md").Times(1)
	mockLogger.EXPECT().Warn("part1part2", "path", "a.md").Times(1)

	c, err := transform.NewCommand(
		[]string{"sh", "-c", "echo line1 >&2; printf part1 >&2; sleep 0.1; printf part2 >&2"},
		nil, t.TempDir(), mockLogger,
	)
	require.NoError(t, err)

	_, err = c.ProcessString(context.Background(), "", "a.md")
	require.NoError(t, err)
}

func TestCommand_Failure(t *testing.T) {
	c, err := transform.NewCommand([]string{"sh", "-c", "echo syntax error >&2; exit 3"}, nil, t.TempDir(), nil)
	require.NoError(t, err)

	_, err = c.ProcessString(context.Background(), "", "a.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command failed")

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error")
	meta := zErr.Metadata()
	assert.Equal(t, 3, meta["exit_code"])
	assert.Equal(t, "syntax error", meta["stderr"])
}

func TestCommand_Cancelled(t *testing.T) {
	c, err := transform.NewCommand([]string{"sleep", "5"}, nil, t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.ProcessString(ctx, "", "a.md")
	require.Error(t, err)
}

func TestNewCommand_Empty(t *testing.T) {
	_, err := transform.NewCommand(nil, nil, "", nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
