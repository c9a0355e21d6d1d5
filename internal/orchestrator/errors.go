package orchestrator

import "errors"

var (
	// ErrInvalidState is returned synchronously when a command arrives in
	// a state that does not accept it (e.g. startListening while already
	// listening). No event is emitted for these.
	ErrInvalidState = errors.New("orchestrator: command not valid in current state")

	// ErrNoSession is returned by commands that need accumulated session
	// state before any session has run.
	ErrNoSession = errors.New("orchestrator: no session data")
)
