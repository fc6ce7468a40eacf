package reports

import (
	"github.com/pkg/errors"
)

var (
	// ErrMasterSheetNotFound means the configured master spreadsheet does not
	// exist or is not shared with the service account.
	ErrMasterSheetNotFound = errors.New("master spreadsheet not found")
	ErrInvalidReport       = errors.New("invalid report")
	// ErrSubmissionInFlight is returned for a repeated submission id whose
	// first attempt has not finished yet.
	ErrSubmissionInFlight = errors.New("submission already in progress")
)

// StorageError is any failure of the spreadsheet service while locating,
// creating or appending. Nothing is retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Reason classifies err for metrics and logs.
func Reason(err error) string {
	var se *StorageError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMasterSheetNotFound):
		return "master_not_found"
	case errors.Is(err, ErrInvalidReport):
		return "invalid"
	case errors.Is(err, ErrSubmissionInFlight):
		return "in_flight"
	case errors.As(err, &se):
		return "storage"
	}
	return "unknown"
}
