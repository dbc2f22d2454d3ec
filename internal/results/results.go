// Package results renders an Evaluator's verdict to a result directory:
// a full description tree and a one-line brief summary. Screen-valued
// observations are named but never rasterized here; ImageExporter gives
// that external collaborator a seam without this module implementing
// OCR or image export itself.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/kwashburn/micrograder/internal/evaluator"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/testcase"
)

// TimestampedDir formats a results directory path from format (a
// strftime pattern) evaluated against now. A malformed format falls
// back to a plain RFC3339-named directory rather than failing the run
// over a cosmetic naming choice.
func TimestampedDir(format string, now time.Time) string {
	formatted, err := strftime.Format(format, now)
	if err != nil {
		return filepath.Join("results", now.Format(time.RFC3339))
	}
	return formatted
}

// ImageExporter rasterizes a screen-valued observation to an image file.
// No implementation lives in this module; a caller that wants PNG/OCR
// output supplies one.
type ImageExporter interface {
	ExportImage(path string, observed interface{}) error
}

// Write renders the already-evaluated channel results in outcome as
// description.txt (the full per-channel, per-point breakdown) and
// brief_description.txt (one pass/fail line) in dir; tc is not read.
// dir is created if it doesn't exist.
func Write(dir string, tc *testcase.TestCase, outcome map[frame.Key]evaluator.ChannelResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("results: create %s: %w", dir, err)
	}

	full := describe(outcome)
	if err := os.WriteFile(filepath.Join(dir, "description.txt"), []byte(full), 0o644); err != nil {
		return fmt.Errorf("results: write description.txt: %w", err)
	}

	brief := briefDescribe(outcome)
	if err := os.WriteFile(filepath.Join(dir, "brief_description.txt"), []byte(brief), 0o644); err != nil {
		return fmt.Errorf("results: write brief_description.txt: %w", err)
	}
	return nil
}

// sortedKeys returns outcome's keys in a stable (data type, channel)
// order so repeated runs against the same log produce byte-identical
// description files.
func sortedKeys(outcome map[frame.Key]evaluator.ChannelResult) []frame.Key {
	keys := make([]frame.Key, 0, len(outcome))
	for k := range outcome {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].DataType != keys[j].DataType {
			return keys[i].DataType.String() < keys[j].DataType.String()
		}
		return keys[i].Channel < keys[j].Channel
	})
	return keys
}

func describe(outcome map[frame.Key]evaluator.ChannelResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "result: %s\n", verdict(overallPass(outcome)))

	for _, key := range sortedKeys(outcome) {
		cr := outcome[key]
		fmt.Fprintf(&b, "\n%s %s: %s\n", key.DataType, key.Channel, verdict(cr.Passed))
		for i, p := range cr.Points {
			fmt.Fprintf(&b, "  point %d: %s observed=%v\n", i, verdict(p.Passed), p.Observed)
		}
	}
	return b.String()
}

func briefDescribe(outcome map[frame.Key]evaluator.ChannelResult) string {
	pass := overallPass(outcome)
	if pass {
		return "PASS\n"
	}

	var failing []string
	for _, key := range sortedKeys(outcome) {
		if !outcome[key].Passed {
			failing = append(failing, fmt.Sprintf("%s %s", key.DataType, key.Channel))
		}
	}
	return fmt.Sprintf("FAIL: %s\n", strings.Join(failing, ", "))
}

func overallPass(outcome map[frame.Key]evaluator.ChannelResult) bool {
	for _, cr := range outcome {
		if !cr.Passed {
			return false
		}
	}
	return true
}

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
