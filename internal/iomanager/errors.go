package iomanager

import "errors"

// Error kinds the facade reports. Callers dispatch with errors.Is; the
// wrapped message carries the specifics.
var (
	// ErrNoConverter means identification returned nothing and no final
	// converter is registered.
	ErrNoConverter = errors.New("no converter accepts the input")

	// ErrIncompatibleInputs means a merge or expression evaluation was
	// given volumes that do not share geometry or type.
	ErrIncompatibleInputs = errors.New("incompatible input volumes")

	// ErrUnsupportedType means type dispatch hit a case the pipeline does
	// not handle.
	ErrUnsupportedType = errors.New("unsupported voxel type")

	// ErrMultiInputToNative means multiple sources were given with a
	// non-UVF target.
	ErrMultiInputToNative = errors.New("cannot convert multiple files to anything but UVF")

	// ErrInvalidPayload means an embedded payload failed to decode.
	ErrInvalidPayload = errors.New("invalid embedded payload")

	// ErrReaderDropped means a dataset reader handle no longer resolves.
	ErrReaderDropped = errors.New("dataset reader has been dropped")
)
