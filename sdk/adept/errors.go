package adept

import (
	"errors"
	"fmt"
)

// Kind classifies a failed protocol exchange.
type Kind int

const (
	// KindTransport means no usable reply: unreachable host, non-2xx, timeout.
	KindTransport Kind = iota + 1
	// KindProtocol means the server answered with an <error> element.
	KindProtocol
	// KindParse means the reply did not have the expected shape.
	KindParse
	// KindCrypto means local key material could not be used.
	KindCrypto
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindParse:
		return "parse"
	case KindCrypto:
		return "crypto"
	default:
		return "unknown"
	}
}

type ProtocolError struct {
	Kind      Kind
	Operation string
	Message   string
	Err       error
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	return fmt.Sprintf("%s %s error: %s", e.Operation, e.Kind, msg)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries a ProtocolError of the given kind.
func IsKind(err error, kind Kind) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Kind == kind
}

func parseError(op string, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: KindParse, Operation: op, Message: fmt.Sprintf(format, args...)}
}

func serverError(op string, message string) *ProtocolError {
	return &ProtocolError{Kind: KindProtocol, Operation: op, Message: message}
}
