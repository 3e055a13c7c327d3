package chat

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	// ErrValidation: bad caller input. No provider call was attempted.
	ErrValidation ErrorKind = "validation"
	// ErrUpload: the text extraction step failed.
	ErrUpload ErrorKind = "upload"
	// ErrAPI: the analysis step failed, or extraction produced unusable output.
	ErrAPI ErrorKind = "api"
	// ErrNetwork: generic connectivity failure not attributable to one step.
	ErrNetwork ErrorKind = "network"
)

// Error is the only failure value that crosses the pipeline's public
// boundary. Message is safe to show to the end user; Details carries the
// provider diagnostic, if any.
type Error struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	Details string    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewError creates an Error with no diagnostic details.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Message: message, Kind: kind}
}

// WrapError creates an Error carrying the underlying cause as Details.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	e := &Error{Message: message, Kind: kind}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}
