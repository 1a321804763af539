package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/encoding"
)

// Decode sanity bounds. A single field exceeding these is damage, not
// data.
const (
	maxVectorCount = 1 << 20
	maxFieldSize   = 1 << 27 // 128 MB per transaction or extension
)

// Codec is the production block codec: fixed-width fields little-endian,
// variable fields uvarint-length-prefixed. The encoding is
// self-delimiting, so a decoder positioned at the start of a block
// consumes exactly one block.
type Codec struct{}

var _ blocklog.Codec = Codec{}

func (Codec) Marshal(b blocklog.Block) ([]byte, error) {
	sb, ok := b.(*SignedBlock)
	if !ok {
		return nil, fmt.Errorf("chain codec cannot serialize %T", b)
	}

	var buf bytes.Buffer
	sb.marshalTo(&buf)
	return buf.Bytes(), nil
}

func (sb *SignedBlock) marshalTo(buf *bytes.Buffer) {
	buf.Write(sb.Previous[:])

	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], sb.Timestamp)
	buf.Write(ts[:])

	encoding.PutAsUVarint(buf, uint64(len(sb.Witness)))
	buf.WriteString(sb.Witness)

	buf.Write(sb.TransactionMerkleRoot[:])

	encoding.PutAsUVarint(buf, uint64(len(sb.Extensions)))
	for _, ext := range sb.Extensions {
		encoding.PutAsUVarint(buf, uint64(len(ext)))
		buf.Write(ext)
	}

	buf.Write(sb.WitnessSignature[:])

	encoding.PutAsUVarint(buf, uint64(len(sb.Transactions)))
	for _, tx := range sb.Transactions {
		encoding.PutAsUVarint(buf, uint64(len(tx)))
		buf.Write(tx)
	}
}

func (Codec) Unmarshal(r io.Reader) (blocklog.Block, int, error) {
	consumed := 0
	sb := &SignedBlock{}

	if err := readFull(r, sb.Previous[:], &consumed); err != nil {
		return nil, consumed, err
	}

	var ts [4]byte
	if err := readFull(r, ts[:], &consumed); err != nil {
		return nil, consumed, err
	}
	sb.Timestamp = binary.LittleEndian.Uint32(ts[:])

	witnessLen, err := readUvarintBounded(r, MaxWitnessNameLen, &consumed)
	if err != nil {
		return nil, consumed, fmt.Errorf("witness name: %w", err)
	}
	witness := make([]byte, witnessLen)
	if err := readFull(r, witness, &consumed); err != nil {
		return nil, consumed, err
	}
	sb.Witness = string(witness)

	if err := readFull(r, sb.TransactionMerkleRoot[:], &consumed); err != nil {
		return nil, consumed, err
	}

	extCount, err := readUvarintBounded(r, maxVectorCount, &consumed)
	if err != nil {
		return nil, consumed, fmt.Errorf("extension count: %w", err)
	}
	if extCount > 0 {
		sb.Extensions = make([][]byte, 0, extCount)
		for i := uint64(0); i < extCount; i++ {
			size, err := readUvarintBounded(r, maxFieldSize, &consumed)
			if err != nil {
				return nil, consumed, fmt.Errorf("extension %d: %w", i, err)
			}
			ext := make([]byte, size)
			if err := readFull(r, ext, &consumed); err != nil {
				return nil, consumed, err
			}
			sb.Extensions = append(sb.Extensions, ext)
		}
	}

	if err := readFull(r, sb.WitnessSignature[:], &consumed); err != nil {
		return nil, consumed, err
	}

	txCount, err := readUvarintBounded(r, maxVectorCount, &consumed)
	if err != nil {
		return nil, consumed, fmt.Errorf("transaction count: %w", err)
	}
	if txCount > 0 {
		sb.Transactions = make([][]byte, 0, txCount)
		for i := uint64(0); i < txCount; i++ {
			size, err := readUvarintBounded(r, maxFieldSize, &consumed)
			if err != nil {
				return nil, consumed, fmt.Errorf("transaction %d: %w", i, err)
			}
			tx := make([]byte, size)
			if err := readFull(r, tx, &consumed); err != nil {
				return nil, consumed, err
			}
			sb.Transactions = append(sb.Transactions, tx)
		}
	}

	return sb, consumed, nil
}

func readFull(r io.Reader, buf []byte, consumed *int) error {
	n, err := io.ReadFull(r, buf)
	*consumed += n
	return err
}

func readUvarintBounded(r io.Reader, limit uint64, consumed *int) (uint64, error) {
	v, n, err := encoding.ReadUvarint(r)
	*consumed += n
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, fmt.Errorf("value %d exceeds limit %d", v, limit)
	}
	return v, nil
}
