package ingest

import "errors"

var (
	// ErrEmptyInput is returned by Submit when the text is blank after trimming.
	ErrEmptyInput = errors.New("ingest: empty input")

	// ErrBusy is returned by Submit while another submission is parsing.
	ErrBusy = errors.New("ingest: a submission is already in progress")
)
