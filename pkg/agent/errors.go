package agent

import "fmt"

// NotFoundError indicates no agent is registered for a capability.
type NotFoundError struct {
	Capability Capability
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no agent registered for capability %q", e.Capability)
}
