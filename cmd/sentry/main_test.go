package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/journal"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func writeImage(t *testing.T, dir, name string, mat gocv.Mat) string {
	t.Helper()
	defer mat.Close()

	path := filepath.Join(dir, name)
	require.True(t, gocv.IMWrite(path, mat))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"sentry"}, args...))
	return out.String(), err
}

func TestPrepareCommand(t *testing.T) {
	dir := t.TempDir()
	frame := writeImage(t, dir, "frame.png", test.NewFrameGenerator(1920, 1080).Uniform(90))
	out := filepath.Join(dir, "motion.png")

	stdout, err := run(t, "prepare", "--frame", frame, "--out", out)
	require.NoError(t, err)
	assert.Equal(t, "motion input 500x153\n", stdout)

	mat := gocv.IMRead(out, gocv.IMReadColor)
	defer mat.Close()
	assert.Equal(t, 500, mat.Cols())
	assert.Equal(t, 153, mat.Rows())
}

func TestRegionCommand(t *testing.T) {
	dir := t.TempDir()
	frame := writeImage(t, dir, "frame.png", test.NewFrameGenerator(1920, 1080).Uniform(90))
	mask := writeImage(t, dir, "mask.png", test.NewFrameGenerator(100, 100).Mask(images.RectFromXYWH(40, 40, 20, 20)))
	out := filepath.Join(dir, "region.png")

	stdout, err := run(t, "region", "--frame", frame, "--mask", mask, "--out", out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "region "), stdout)

	mat := gocv.IMRead(out, gocv.IMReadColor)
	defer mat.Close()
	assert.InDelta(t, 494, mat.Cols(), 4)
	assert.InDelta(t, 417, mat.Rows(), 2)

	blank := writeImage(t, dir, "blank.png", test.NewFrameGenerator(100, 100).Mask())
	_, err = run(t, "region", "--frame", frame, "--mask", blank, "--out", out)
	assert.Error(t, err)
}

func TestJournalCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), journal.Event{
		Time:   time.Date(2026, 10, 19, 14, 3, 22, 0, time.Local),
		Camera: "porch",
		Kind:   models.KindPerson,
		Status: "present",
		Score:  0.9,
		Path:   "images/people/10-19-2026--14-03-22_person.png",
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	cfgPath := filepath.Join(dir, "sentry.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("journal:\n  path: "+dbPath+"\n"), 0o644))

	stdout, err := run(t, "--config", cfgPath, "journal", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "10-19-2026--14-03-22 porch person present")
	assert.Contains(t, stdout, "_person.png")

	disabled := filepath.Join(dir, "disabled.yaml")
	require.NoError(t, os.WriteFile(disabled, []byte("journal:\n  path: \"\"\n"), 0o644))
	_, err = run(t, "--config", disabled, "journal")
	assert.Error(t, err)
}

func TestDetectCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	frame := writeImage(t, dir, "frame.png", test.NewFrameGenerator(64, 64).Uniform(90))

	_, err := run(t, "detect", "--frame", frame, "--kind", "car")
	assert.Error(t, err)

	_, err = run(t, "detect", "--frame", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	// The default model files do not exist here.
	_, err = run(t, "detect", "--frame", frame)
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("motion:\n  mask_width: -3\n"), 0o644))

	_, err := run(t, "--config", path, "journal")
	assert.Error(t, err)
}

func TestBatchCommand_Errors(t *testing.T) {
	empty := t.TempDir()
	_, err := run(t, "batch", "--frames", empty)
	assert.ErrorContains(t, err, "no frames")

	frames := t.TempDir()
	writeImage(t, frames, "frame-1.png", test.NewFrameGenerator(64, 64).Uniform(90))
	_, err = run(t, "batch", "--frames", frames, "--kind", "dog")
	assert.Error(t, err)

	// The default model files do not exist here.
	_, err = run(t, "batch", "--frames", frames)
	assert.Error(t, err)
}
