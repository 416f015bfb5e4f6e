package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const (
	factoryABIJSON = `[{"inputs":[],"name":"allPairsLength","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var (
	factoryABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic("failed to parse factory ABI: " + err.Error())
	}
	factoryABI = parsed
}

// FactoryOptions parameterise the on-chain fetcher.
type FactoryOptions struct {
	RPCURL         string
	FactoryAddress string
	Timeout        time.Duration
}

// Factory reads the pair counter of a UniswapV2-style factory via
// Ethereum RPC.
type Factory struct {
	opts      FactoryOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewFactory builds a new factory pair-count fetcher.
func NewFactory(opts FactoryOptions, logger zerolog.Logger) *Factory {
	return &Factory{opts: opts, logger: logger.With().Str("component", "factory_fetcher").Logger()}
}

// FetchPairCount reads allPairsLength at the current chain head and
// returns the count together with the head block number.
func (f *Factory) FetchPairCount(ctx context.Context) (*big.Int, uint64, error) {
	ctx, cancel, err := f.callContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer cancel()

	client, err := f.getClient(ctx)
	if err != nil {
		return nil, 0, err
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, 0, err
	}

	count, err := f.callAllPairsLength(ctx, client, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, 0, err
	}
	return count, blockNumber, nil
}

// FetchPairCountAt reads allPairsLength at a specific historical block.
// Needs an archive-capable RPC for blocks outside the node's state window.
func (f *Factory) FetchPairCountAt(ctx context.Context, block uint64) (*big.Int, error) {
	ctx, cancel, err := f.callContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	client, err := f.getClient(ctx)
	if err != nil {
		return nil, err
	}

	return f.callAllPairsLength(ctx, client, new(big.Int).SetUint64(block))
}

func (f *Factory) callContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if f.opts.RPCURL == "" {
		return nil, nil, errors.New("ethereum rpc url not configured")
	}
	if f.opts.FactoryAddress == "" {
		return nil, nil, errors.New("factory contract address not configured")
	}

	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func (f *Factory) callAllPairsLength(ctx context.Context, client *ethclient.Client, block *big.Int) (*big.Int, error) {
	addr := common.HexToAddress(f.opts.FactoryAddress)

	payload, err := factoryABI.Pack("allPairsLength")
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, block)
	if err != nil {
		return nil, err
	}

	outputs, err := factoryABI.Unpack("allPairsLength", res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.New("unexpected allPairsLength response")
	}

	count, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode allPairsLength output")
	}
	return count, nil
}

func (f *Factory) getClient(ctx context.Context) (*ethclient.Client, error) {
	f.clientMux.Lock()
	defer f.clientMux.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	client, err := ethclient.DialContext(ctx, f.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

var _ PairCountFetcher = (*Factory)(nil)
