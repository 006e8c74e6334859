package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdout_WritesTranscriptWithNewline(t *testing.T) {
	var buf bytes.Buffer
	s := Stdout(&buf)
	require.NoError(t, s("hello world"))
	assert.Equal(t, "hello world\n", buf.String())
}

func TestFile_AppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	s := File(path)
	require.NoError(t, s("first"))
	require.NoError(t, s("second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestFile_ErrorsOnUnwritableDirectory(t *testing.T) {
	s := File(filepath.Join(t.TempDir(), "missing-dir", "out.txt"))
	assert.Error(t, s("text"))
}

func TestClipboardCommand_PrefersWlCopyOnWayland(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	orig := lookPath
	defer func() { lookPath = orig }()
	lookPath = func(name string) (string, error) {
		if name == "wl-copy" {
			return "/usr/bin/wl-copy", nil
		}
		return "", errors.New("not found")
	}

	name, args, err := clipboardCommand()
	require.NoError(t, err)
	assert.Equal(t, "wl-copy", name)
	assert.Empty(t, args)
}

func TestClipboardCommand_FallsBackToXclipOnX11(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")
	orig := lookPath
	defer func() { lookPath = orig }()
	lookPath = func(name string) (string, error) {
		if name == "xclip" {
			return "/usr/bin/xclip", nil
		}
		return "", errors.New("not found")
	}

	name, args, err := clipboardCommand()
	require.NoError(t, err)
	assert.Equal(t, "xclip", name)
	assert.Equal(t, []string{"-selection", "clipboard"}, args)
}

func TestClipboardCommand_ErrorsWhenNoHelperFound(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")
	orig := lookPath
	defer func() { lookPath = orig }()
	lookPath = func(name string) (string, error) {
		return "", errors.New("not found")
	}

	_, _, err := clipboardCommand()
	assert.Error(t, err)
}
