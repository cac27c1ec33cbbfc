package llm

import "errors"

var (
	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("llm request timed out")

	// ErrInvalidOutput indicates the model response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid llm output format")

	// ErrRateLimited is returned when the provider answers 429.
	ErrRateLimited = errors.New("llm rate limit exceeded")

	// ErrUnauthorized is returned when the provider rejects the API key.
	ErrUnauthorized = errors.New("llm api key is invalid")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("llm retry attempts exhausted")
)

// ConfigurationError reports a generator that cannot be built, typically
// because no API key was supplied.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return "llm configuration: " + e.Field + " " + e.Msg
}
