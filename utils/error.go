package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDuplicateRequest is returned when a caller-supplied idempotency key
// has already completed successfully.
var ErrorDuplicateRequest = errors.New("duplicate request: operation already completed")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
