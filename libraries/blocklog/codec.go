package blocklog

import "io"

// Block is the unit of append. The log treats blocks as opaque records;
// the only structure it relies on is the block number.
type Block interface {
	BlockNum() uint32
}

// Codec serializes blocks into a self-delimiting binary form. Unmarshal
// reads exactly one block from a stream positioned at its first byte
// and reports how many bytes it consumed. The encoding must be stable
// for the life of a log; changing it requires a Rewrite.
type Codec interface {
	Marshal(b Block) ([]byte, error)
	Unmarshal(r io.Reader) (Block, int, error)
}
