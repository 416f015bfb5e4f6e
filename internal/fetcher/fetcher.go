package fetcher

import (
	"context"
	"math/big"
)

// PairCountFetcher retrieves the pair counter published by a DEX factory
// contract. FetchPairCount pins the read to the chain head it reports so
// the count and block always describe the same state.
type PairCountFetcher interface {
	FetchPairCount(ctx context.Context) (count *big.Int, block uint64, err error)
	FetchPairCountAt(ctx context.Context, block uint64) (*big.Int, error)
}
