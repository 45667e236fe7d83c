package parser

import (
	apperrors "github.com/size-analysis/pkg/errors"
)

var (
	// ErrAborted is returned when a fetch is cancelled, either by the caller
	// or by a newer fetch on the same decoder.
	ErrAborted = apperrors.New(apperrors.CodeAborted, "stream fetch aborted")

	// ErrTransport is returned when the source cannot be opened or read.
	ErrTransport = apperrors.New(apperrors.CodeTransportError, "stream transport failed")

	// ErrMalformedRecord is returned when a line is not valid JSON.
	ErrMalformedRecord = apperrors.New(apperrors.CodeParseError, "malformed record")

	// ErrEmptyInput is returned when the stream has no records at all.
	ErrEmptyInput = apperrors.New(apperrors.CodeInvalidInput, "empty input")

	// ErrMissingMeta is returned when the first record is not a meta object.
	ErrMissingMeta = apperrors.New(apperrors.CodeParseError, "first record is not a meta object")
)
