package report

import "errors"

var (
	// ErrInvalidDetection marks input faults caught before any store access.
	ErrInvalidDetection = errors.New("invalid detection result")
	// ErrPersistence marks store read/write faults. Nothing was written.
	ErrPersistence = errors.New("report store failure")
	// ErrCorruptReport marks a stored payload that does not parse.
	ErrCorruptReport = errors.New("stored report is corrupt")

	ErrEmptyReport          = errors.New("report has no detections")
	ErrSubmissionInProgress = errors.New("a submission for this date is already in progress")
	ErrRender               = errors.New("could not render report document")
	ErrTransmission         = errors.New("could not transmit report")
	ErrNotAcknowledged      = errors.New("collection center did not acknowledge the report")
)
