package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/hibiken/asynq"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// TaskTypeProbeCycle is the asynq task type for one deployment probe cycle
const TaskTypeProbeCycle = "probe:cycle"

type probePayload struct {
	DeploymentID interfaces.DeploymentID `json:"deployment_id"`
}

// NewProbeTask builds the task that runs a probe cycle for id
func NewProbeTask(id interfaces.DeploymentID) (*asynq.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("deployment id is required")
	}
	payload, err := json.Marshal(probePayload{DeploymentID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe payload: %w", err)
	}
	return asynq.NewTask(TaskTypeProbeCycle, payload), nil
}

// ParseProbeTask extracts the deployment id from a probe task
func ParseProbeTask(task *asynq.Task) (interfaces.DeploymentID, error) {
	if task.Type() != TaskTypeProbeCycle {
		return "", fmt.Errorf("unexpected task type %q", task.Type())
	}
	var p probePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return "", fmt.Errorf("failed to unmarshal probe payload: %w", err)
	}
	if p.DeploymentID == "" {
		return "", fmt.Errorf("probe payload has no deployment id")
	}
	return p.DeploymentID, nil
}

// IsTransient reports whether a failed probe cycle is worth retrying before
// the next scan picks the deployment up again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
