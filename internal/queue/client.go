package queue

import "context"

// Publisher hands re-extraction jobs to the worker fleet. A nil Publisher
// means jobs run inline in the request.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
