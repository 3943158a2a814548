package livefyre

import (
	"encoding/json"
	"fmt"

	"github.com/sidereusnuntius/golivefyre/internal/signature"
	"github.com/sidereusnuntius/golivefyre/internal/token"
)

// ConfigurationError reports a missing or unusable client setting.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration"
	}
	return "invalid configuration: missing " + e.Field
}

func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// InvalidArgumentError is returned before any request is issued.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	if e.Argument == "" {
		return "invalid argument"
	}
	return fmt.Sprintf("invalid %s: %s", e.Argument, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool {
	_, ok := target.(*InvalidArgumentError)
	return ok
}

// RemoteAPIError carries a non-success response from the remote service.
type RemoteAPIError struct {
	StatusCode int
	Body       []byte
	// Message is the msg field of a JSON error body, when there is one.
	Message string
}

func (e *RemoteAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("livefyre: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("livefyre: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteAPIError) Is(target error) bool {
	_, ok := target.(*RemoteAPIError)
	return ok
}

func newRemoteAPIError(status int, body []byte) *RemoteAPIError {
	e := &RemoteAPIError{StatusCode: status, Body: body}
	var msg struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body, &msg) == nil {
		e.Message = msg.Msg
	}
	return e
}

type (
	InvalidTokenError     = token.Error
	InvalidSignatureError = signature.Error
)

var (
	ErrConfiguration    = &ConfigurationError{}
	ErrInvalidArgument  = &InvalidArgumentError{}
	ErrRemoteAPI        = &RemoteAPIError{}
	ErrInvalidToken     = token.ErrInvalid
	ErrInvalidSignature = signature.ErrInvalid
)

func invalid(argument, reason string) error {
	return &InvalidArgumentError{Argument: argument, Reason: reason}
}
