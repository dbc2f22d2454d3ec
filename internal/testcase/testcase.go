// Package testcase defines the TestCase type: a RequestHandler paired
// with the Evaluator that scores a session recorded against it, plus
// YAML persistence (yaml.go), for the same reasons RequestLog persists
// as YAML rather than as an opaque blob.
package testcase

import (
	"github.com/kwashburn/micrograder/internal/evaluator"
	"github.com/kwashburn/micrograder/internal/handler"
)

// TestCase is a RequestHandler (how the device's live queries get
// answered) and the Evaluator that grades a resulting log.
type TestCase struct {
	Handler   *handler.RequestHandler
	Evaluator *evaluator.Evaluator
}

// New pairs a handler and evaluator into a TestCase.
func New(h *handler.RequestHandler, e *evaluator.Evaluator) *TestCase {
	return &TestCase{Handler: h, Evaluator: e}
}
