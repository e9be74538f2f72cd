package client

import (
	"errors"
	"fmt"

	"github.com/colibrishin/dx-api-sub000/internal/protocol"
)

var ErrRejected = errors.New("request rejected by server")

// RejectError carries the NoGo a request was answered with.
type RejectError struct {
	Kind   protocol.Kind
	Reason protocol.Reason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected: reason %d", e.Kind, e.Reason)
}

func (e *RejectError) Unwrap() error { return ErrRejected }

// IsReason reports whether err is a rejection for reason r.
func IsReason(err error, r protocol.Reason) bool {
	var re *RejectError
	return errors.As(err, &re) && re.Reason == r
}
