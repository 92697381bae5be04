package filing

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable failure class reported alongside the
// human-readable detail.
type Kind string

const (
	KindInvalidClassification Kind = "invalid_classification"
	KindStorageUnavailable    Kind = "storage_unavailable"
	KindMetadataPersist       Kind = "metadata_persist_failure"
	KindDuplicateFolder       Kind = "duplicate_folder_detected"
	KindPermissionOperation   Kind = "permission_operation_failure"
)

type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func invalidf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidClassification, Detail: fmt.Sprintf(format, args...)}
}

func storageErr(detail string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Detail: detail, Err: err}
}

func permissionErr(detail string, err error) *Error {
	return &Error{Kind: KindPermissionOperation, Detail: detail, Err: err}
}

// KindOf extracts the failure class, or "" for plain errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
