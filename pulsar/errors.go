package pulsar

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned when Start is called on a node that is
// already running.
var ErrAlreadyRunning = errors.New("node already running")

// EmptyPoolError is returned when a random node is requested from a role
// with no members.
type EmptyPoolError struct {
	Role Role
}

func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("no %s is alive", e.Role)
}
