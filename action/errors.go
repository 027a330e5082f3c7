package action

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/pflow/node"
)

// ErrUnknownNode is returned for a handle that does not resolve, usually
// because the node was removed.
var ErrUnknownNode = errors.New("action: unknown node")

// TopologyError reports a graph edit that was rejected. Edits are checked
// when they are made so a bad graph never reaches Proceed.
type TopologyError struct {
	// Code identifies the rule that was violated.
	Code TopologyErrorCode

	// Node is the node the edit was applied to.
	Node node.Handle

	// Message is a human-readable description.
	Message string
}

// TopologyErrorCode categorizes topology violations.
type TopologyErrorCode string

const (
	// ErrCodeSecondFertile indicates a list already has a fertile operator.
	ErrCodeSecondFertile TopologyErrorCode = "SECOND_FERTILE"

	// ErrCodeFertileRouted indicates a fertile operator on a list with inbound arrows.
	ErrCodeFertileRouted TopologyErrorCode = "FERTILE_ROUTED"

	// ErrCodeWrongKind indicates a node of the wrong kind for the edit.
	ErrCodeWrongKind TopologyErrorCode = "WRONG_KIND"

	// ErrCodeDuplicate indicates the edge or membership already exists.
	ErrCodeDuplicate TopologyErrorCode = "DUPLICATE"
)

// Error implements the error interface.
func (e *TopologyError) Error() string {
	return fmt.Sprintf("%s: node %d: %s", e.Code, e.Node, e.Message)
}

// IsTopologyError returns true if err is or wraps a TopologyError.
func IsTopologyError(err error) bool {
	var te *TopologyError
	return errors.As(err, &te)
}

// IsFertileError returns true if err rejected a fertile operator.
func IsFertileError(err error) bool {
	var te *TopologyError
	if errors.As(err, &te) {
		return te.Code == ErrCodeSecondFertile || te.Code == ErrCodeFertileRouted
	}
	return false
}
