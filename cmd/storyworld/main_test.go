package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yml")))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlay_ListsEmbeddedStories(t *testing.T) {
	t.Setenv("STORY_SOURCE", "embedded")
	out, err := execute(t, "play")
	require.NoError(t, err)
	assert.Contains(t, out, "1      Escape the Mysterious House")
	assert.Contains(t, out, "Lost in the Whispering Woods")
}

func TestPlay_UnknownStory(t *testing.T) {
	t.Setenv("STORY_SOURCE", "embedded")
	_, err := execute(t, "play", "999")
	assert.ErrorContains(t, err, "story not found")
}

func TestPlay_InvalidConfig(t *testing.T) {
	t.Setenv("STORY_SOURCE", "file")
	_, err := execute(t, "play")
	assert.ErrorContains(t, err, "STORY_PATH")
}

func TestMigrate_RejectsUnknownAction(t *testing.T) {
	_, err := execute(t, "migrate", "sideways")
	assert.Error(t, err)
}
