package domain

import "fmt"

// ConnectionError marks a source or destination as unreachable. Retriable:
// the batch run fails for this cycle only, the stream worker backs off and
// the message is redelivered.
type ConnectionError struct {
	System string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.System, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError marks a rejected warehouse write. The batch in flight is never
// partially confirmed; watermark and consumer offset are withheld.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s rejected: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DecodeError marks a malformed change event. Non-retriable for that
// message: it is dead-lettered or halts the topic worker, never silently
// dropped.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("malformed change event: %v", e.Err)
	}
	return fmt.Sprintf("malformed change event on %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
