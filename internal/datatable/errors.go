package datatable

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermissionDenied marks a fetch the backend refused for lack of rights.
var ErrPermissionDenied = errors.New("permission denied")

// ErrStaleResult is returned when a fetch completes after a newer one was issued.
var ErrStaleResult = errors.New("stale fetch result discarded")

// PermissionDeniedMessage is shown instead of the generic fetch failure text.
const PermissionDeniedMessage = "You don't have permission to view this data."

// FailureKind classifies a fetch failure.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailurePermissionDenied
)

func (k FailureKind) String() string {
	if k == FailurePermissionDenied {
		return "permission-denied"
	}
	return "generic"
}

// FetchError wraps a DataSource error with its classification.
type FetchError struct {
	Kind FailureKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrPermissionDenied && e.Kind == FailurePermissionDenied
}

// UserMessage is the text surfaced to the host for this failure.
func (e *FetchError) UserMessage() string {
	if e.Kind == FailurePermissionDenied {
		return PermissionDeniedMessage
	}
	return fmt.Sprintf("Failed to load data: %v", e.Err)
}

var permissionMarkers = []string{
	"permission",
	"forbidden",
	"unauthorized",
	"not authorized",
	"403",
}

// ClassifyFetchError wraps err into a FetchError. Permission failures are
// recognized by ErrPermissionDenied in the chain or by the error text.
func ClassifyFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	kind := FailureGeneric
	if errors.Is(err, ErrPermissionDenied) {
		kind = FailurePermissionDenied
	} else {
		msg := strings.ToLower(err.Error())
		for _, m := range permissionMarkers {
			if strings.Contains(msg, m) {
				kind = FailurePermissionDenied
				break
			}
		}
	}
	return &FetchError{Kind: kind, Err: err}
}
