package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/requestlog"
	"github.com/kwashburn/micrograder/internal/sequence"
)

func TestRunAssessLogRequiresTestcaseAndLog(t *testing.T) {
	err := runAssessLog([]string{})
	assert.Error(t, err)
}

func TestRunScaffoldRequiresDefaultN(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	tcPath := filepath.Join(dir, "case.yaml")

	l := requestlog.New()
	l.Append(request.NewOutput(0, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(1)}, nil))
	require.NoError(t, saveLog(logPath, l))

	err := runScaffold([]string{"--log", logPath, "--testcase", tcPath})
	assert.Error(t, err)
}

func TestRunScaffoldRejectsMissingFont(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	tcPath := filepath.Join(dir, "case.yaml")

	l := requestlog.New()
	l.Append(request.NewEvent(0, request.PrintEvent, "start"))
	l.Append(request.NewOutput(0, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(0)}, nil))
	require.NoError(t, saveLog(logPath, l))

	err := runScaffold([]string{"--log", logPath, "--testcase", tcPath, "--default", "1", "--font", filepath.Join(dir, "missing.ttf")})
	assert.Error(t, err)
}

func TestRunScaffoldAcceptsPresentFont(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	tcPath := filepath.Join(dir, "case.yaml")
	fontPath := filepath.Join(dir, "font.ttf")
	require.NoError(t, os.WriteFile(fontPath, []byte("not a real font, just needs to exist"), 0o644))

	l := requestlog.New()
	l.Append(request.NewEvent(0, request.PrintEvent, "start"))
	l.Append(request.NewOutput(0, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(0)}, nil))
	require.NoError(t, saveLog(logPath, l))

	err := runScaffold([]string{"--log", logPath, "--testcase", tcPath, "--default", "1", "--font", fontPath})
	assert.NoError(t, err)
}

func TestScaffoldThenAssessLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	tcPath := filepath.Join(dir, "case.yaml")

	l := requestlog.New()
	l.Append(request.NewEvent(0, request.PrintEvent, "start"))
	l.Append(request.NewOutput(0, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(0)}, nil))
	l.Append(request.NewOutput(500, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(1)}, nil))
	l.Append(request.NewOutput(1000, request.DigitalWrite, []string{"13"}, []sequence.Value{sequence.Int(0)}, nil))
	require.NoError(t, saveLog(logPath, l))

	require.NoError(t, runScaffold([]string{"--log", logPath, "--testcase", tcPath, "--default", "2"}))

	_, err := os.Stat(tcPath)
	require.NoError(t, err)

	resultsDir := filepath.Join(dir, "results")
	err = runAssessLog([]string{"--testcase", tcPath, "--log", logPath, "--results", resultsDir})
	require.NoError(t, err)

	brief, err := os.ReadFile(filepath.Join(resultsDir, "brief_description.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, brief)
}
