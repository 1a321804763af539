package blocklog

import "errors"

var (
	// ErrNotOpen is returned when an operation is attempted before Open.
	ErrNotOpen = errors.New("block log is not open")

	// ErrOutOfOrder is returned by Append when the block number is not
	// exactly one past the current head.
	ErrOutOfOrder = errors.New("block number out of order")

	// ErrMalformedBlock is returned when the codec cannot decode the
	// bytes at a given position.
	ErrMalformedBlock = errors.New("malformed block")

	// ErrShortRead is returned when a positioned read crosses the end
	// of the file.
	ErrShortRead = errors.New("short read")

	// ErrInvalidOffset is returned when a caller-supplied offset is out
	// of range.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrIndexInconsistent is returned when an index entry resolves to
	// a block with a different number than expected.
	ErrIndexInconsistent = errors.New("index inconsistent with log")

	// ErrCorrupt is returned when the log itself is damaged in a way
	// recovery cannot repair, such as a gap in block numbering.
	ErrCorrupt = errors.New("block log corrupt")

	// ErrInputTooShort is returned by Rewrite when the input holds
	// fewer blocks than requested.
	ErrInputTooShort = errors.New("input log has fewer blocks than requested")
)

// NPOS is the public sentinel for "no such offset".
const NPOS = ^uint64(0)
