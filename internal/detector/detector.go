// Package detector implements the pair-growth detection rule: given a short
// newest-first history of encoded pair-count samples, decide whether the
// counter grew faster than the configured safety threshold. Evaluation is a
// pure function so that independent watcher instances reach identical
// decisions for identical inputs without coordination.
package detector

import "math/big"

// Policy selects how sample growth is compared against the threshold.
type Policy string

const (
	// PolicyRate normalises growth by block distance before comparing.
	PolicyRate Policy = "rate"
	// PolicyDelta compares the raw two-sample growth against the threshold.
	PolicyDelta Policy = "delta"
)

// DefaultThreshold applies when no threshold is configured.
const DefaultThreshold = 100

// Config parameterises a Detector. Threshold and Policy are fixed at
// construction; tests exercise multiple thresholds by building detectors.
type Config struct {
	Threshold *big.Int
	Policy    Policy
}

// Detector evaluates sample histories against a growth threshold.
type Detector struct {
	threshold *big.Int
	policy    Policy
}

// New constructs a Detector. A nil threshold falls back to DefaultThreshold
// and an empty policy falls back to PolicyRate.
func New(cfg Config) *Detector {
	threshold := cfg.Threshold
	if threshold == nil {
		threshold = big.NewInt(DefaultThreshold)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyRate
	}
	return &Detector{threshold: new(big.Int).Set(threshold), policy: policy}
}

// Threshold returns a copy of the configured threshold.
func (d *Detector) Threshold() *big.Int {
	return new(big.Int).Set(d.threshold)
}

// Decision is the outcome of one evaluation. The numeric fields are set
// only when Trigger is true.
type Decision struct {
	Trigger     bool
	PairCount   *big.Int
	Delta       *big.Int
	SampleBlock *big.Int
}

// Payload encodes the (pairCount, delta, sampleBlock) response triple for a
// triggered decision. Calling it on a non-triggered decision is an error.
func (dec Decision) Payload() ([]byte, error) {
	if !dec.Trigger {
		return nil, errBadShape
	}
	return encodeResponse(dec.PairCount, dec.Delta, dec.SampleBlock)
}

// Evaluate inspects an ordered history of encoded samples, newest first,
// and decides whether growth between the two most recent observations
// breached the threshold.
//
// Malformed input never yields an error: fewer than two samples, blobs that
// do not decode, and samples flagged invalid all degrade to a no-trigger
// decision so a fixed-cadence caller is never failed by bad history.
func (d *Detector) Evaluate(samples [][]byte) Decision {
	if len(samples) < 2 {
		return Decision{}
	}

	newest, err := DecodeSample(samples[0])
	if err != nil || !newest.Valid {
		return Decision{}
	}
	previous, err := DecodeSample(samples[1])
	if err != nil || !previous.Valid {
		return Decision{}
	}

	// Clamp: a counter reset must not underflow and must not trigger.
	delta := new(big.Int).Sub(newest.Count, previous.Count)
	if delta.Sign() < 0 {
		delta.SetInt64(0)
	}

	observed := delta
	if d.policy == PolicyRate {
		blockDiff := new(big.Int).Sub(newest.Block, previous.Block)
		if blockDiff.Sign() < 1 {
			// Same-block samples degrade to the raw delta.
			blockDiff.SetInt64(1)
		}
		observed = new(big.Int).Quo(delta, blockDiff)
	}

	// Strictly greater than: growth exactly at the threshold stays quiet.
	if observed.Cmp(d.threshold) <= 0 {
		return Decision{}
	}

	return Decision{
		Trigger:     true,
		PairCount:   new(big.Int).Set(newest.Count),
		Delta:       delta,
		SampleBlock: new(big.Int).Set(newest.Block),
	}
}
