package detector

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Wire shapes shared with external trigger sources: a sample is the ABI
// tuple (uint256 count, uint256 block, bool valid), a response payload is
// (uint256 pairCount, uint256 delta, uint256 sampleBlock). Field order is
// part of the contract and must match the ledger ingest signature.
const (
	sampleEncodedLen   = 96
	responseEncodedLen = 96
)

var (
	sampleArgs   abi.Arguments
	responseArgs abi.Arguments
)

var errBadShape = errors.New("detector: blob does not decode to expected shape")

func init() {
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic("failed to build uint256 abi type: " + err.Error())
	}
	boolTy, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic("failed to build bool abi type: " + err.Error())
	}

	sampleArgs = abi.Arguments{
		{Name: "count", Type: uint256Ty},
		{Name: "block", Type: uint256Ty},
		{Name: "valid", Type: boolTy},
	}
	responseArgs = abi.Arguments{
		{Name: "pairCount", Type: uint256Ty},
		{Name: "delta", Type: uint256Ty},
		{Name: "sampleBlock", Type: uint256Ty},
	}
}

// Sample is one observation of the monitored pair counter.
type Sample struct {
	Count *big.Int
	Block *big.Int
	Valid bool
}

// EncodeSample packs a sample into its wire form. Nil numeric fields encode
// as zero so a failed read can still be represented as an invalid sample.
func EncodeSample(s Sample) ([]byte, error) {
	count := s.Count
	if count == nil {
		count = new(big.Int)
	}
	block := s.Block
	if block == nil {
		block = new(big.Int)
	}
	if count.Sign() < 0 || block.Sign() < 0 {
		return nil, fmt.Errorf("detector: sample fields must be non-negative")
	}

	data, err := sampleArgs.Pack(count, block, s.Valid)
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	return data, nil
}

// DecodeSample unpacks a sample blob, rejecting anything that is not the
// exact (uint256, uint256, bool) tuple.
func DecodeSample(data []byte) (Sample, error) {
	if len(data) != sampleEncodedLen {
		return Sample{}, errBadShape
	}

	values, err := sampleArgs.Unpack(data)
	if err != nil {
		return Sample{}, errBadShape
	}

	count, ok := values[0].(*big.Int)
	if !ok {
		return Sample{}, errBadShape
	}
	block, ok := values[1].(*big.Int)
	if !ok {
		return Sample{}, errBadShape
	}
	valid, ok := values[2].(bool)
	if !ok {
		return Sample{}, errBadShape
	}

	return Sample{Count: count, Block: block, Valid: valid}, nil
}

func encodeResponse(pairCount, delta, sampleBlock *big.Int) ([]byte, error) {
	data, err := responseArgs.Pack(pairCount, delta, sampleBlock)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse unpacks a trigger payload into the three values the ledger
// ingest entry point takes, in ingest argument order.
func DecodeResponse(data []byte) (pairCount, delta, sampleBlock *big.Int, err error) {
	if len(data) != responseEncodedLen {
		return nil, nil, nil, errBadShape
	}

	values, err := responseArgs.Unpack(data)
	if err != nil {
		return nil, nil, nil, errBadShape
	}

	pairCount, ok := values[0].(*big.Int)
	if !ok {
		return nil, nil, nil, errBadShape
	}
	delta, ok = values[1].(*big.Int)
	if !ok {
		return nil, nil, nil, errBadShape
	}
	sampleBlock, ok = values[2].(*big.Int)
	if !ok {
		return nil, nil, nil, errBadShape
	}

	return pairCount, delta, sampleBlock, nil
}
