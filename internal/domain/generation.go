package domain

import "fmt"

// GenerationFailure классифицирует сбой вызова модели.
type GenerationFailure int

const (
	GenerationTimeout GenerationFailure = iota + 1
	GenerationConnection
	GenerationStatus
)

// GenerationError возвращается клиентом модели при сетевых сбоях и ответах не 2xx.
type GenerationError struct {
	Kind       GenerationFailure
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case GenerationTimeout:
		return fmt.Sprintf("generation endpoint timeout (%s)", e.Endpoint)
	case GenerationStatus:
		return fmt.Sprintf("generation endpoint returned status %d (%s)", e.StatusCode, e.Endpoint)
	default:
		if e.Err != nil {
			return fmt.Sprintf("generation endpoint connection error (%s): %v", e.Endpoint, e.Err)
		}
		return fmt.Sprintf("generation endpoint connection error (%s)", e.Endpoint)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }
