package storage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Sample source tags.
const (
	SourceLive      = "live"
	SourceBackfill  = "backfill"
	SourceSimulated = "simulated"
)

// PairSample is one persisted observation of the factory pair counter.
// Invalid samples (failed reads) are stored too so the observation history
// stays auditable; their numeric fields carry zeros, never substituted
// values that could pass for a real reading.
type PairSample struct {
	Block      *big.Int
	PairCount  *big.Int
	Valid      bool
	Source     string
	ObservedAt time.Time
}

// Alert is one recorded trigger event. IDs are dense and 1-based; Processed
// is the only field that ever changes after creation.
type Alert struct {
	ID          uint64
	PairCount   *big.Int
	Delta       *big.Int
	SampleBlock *big.Int
	Timestamp   uint64
	TriggeredBy common.Address
	Processed   bool
}

// Clone returns a deep copy so callers cannot mutate stored history through
// the returned big.Int pointers.
func (a Alert) Clone() Alert {
	out := a
	if a.PairCount != nil {
		out.PairCount = new(big.Int).Set(a.PairCount)
	}
	if a.Delta != nil {
		out.Delta = new(big.Int).Set(a.Delta)
	}
	if a.SampleBlock != nil {
		out.SampleBlock = new(big.Int).Set(a.SampleBlock)
	}
	return out
}

// Clone returns a deep copy of the sample.
func (s PairSample) Clone() PairSample {
	out := s
	if s.Block != nil {
		out.Block = new(big.Int).Set(s.Block)
	}
	if s.PairCount != nil {
		out.PairCount = new(big.Int).Set(s.PairCount)
	}
	return out
}
