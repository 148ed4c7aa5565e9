// Package pipeline holds the contract between the orchestrator and the
// per-kind step implementations.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

// Outcome is what a step hands back for the orchestrator to persist.
type Outcome struct {
	// State is the job's full step state after the step. On failure a
	// non-nil State is persisted as partial progress.
	State    any
	Status   config.JobStatus
	Progress int
	Label    string
}

type RunFunc func(ctx context.Context, job *models.Job) (Outcome, error)

// Step is the single unit of work the orchestrator runs for a status.
type Step struct {
	Name string
	// Working is the status recorded while the step runs.
	Working  config.JobStatus
	Progress int
	Label    string
	Run      RunFunc
}

// Pipeline maps each claimable status of one job kind to its next step.
type Pipeline interface {
	Kind() config.JobKind
	StepFor(status config.JobStatus) (Step, bool)
}

// Sleeper pauses between rate-limited calls. Tests swap it for a recorder.
type Sleeper func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var validate = validator.New()

// Decode unmarshals raw into T and validates it. An empty document decodes
// to the zero value. Failures are terminal: a job whose stored payload or
// state does not match its kind cannot make progress on its own.
func Decode[T any](raw []byte, what string) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, policy.Terminal(fmt.Errorf("decode %s: %w", what, err), "The job data is unreadable.")
	}
	if err := validate.Struct(v); err != nil {
		return v, policy.Terminal(fmt.Errorf("validate %s: %w", what, err), "The job data is incomplete.")
	}
	return v, nil
}

// DecodePayload is Decode for the immutable request payload, which must be
// present.
func DecodePayload[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, policy.Terminal(fmt.Errorf("payload is empty"), "The job was created without its input.")
	}
	return Decode[T](raw, "payload")
}
