package app

import (
	"math/big"
	"testing"

	"pair-growth-alerts/internal/storage"
)

func sampleAtBlock(block int64) storage.PairSample {
	return storage.PairSample{
		Block:     big.NewInt(block),
		PairCount: big.NewInt(block * 10),
		Valid:     true,
		Source:    storage.SourceLive,
	}
}

func TestDownsampleSamplesPassthrough(t *testing.T) {
	samples := []storage.PairSample{sampleAtBlock(1), sampleAtBlock(2), sampleAtBlock(3)}

	got := downsampleSamples(samples, 5)
	if len(got) != 3 {
		t.Fatalf("expected all 3 samples back, got %d", len(got))
	}

	got = downsampleSamples(samples, 0)
	if len(got) != 3 {
		t.Fatalf("expected passthrough for non-positive max, got %d samples", len(got))
	}
}

func TestDownsampleSamplesKeepsEndpoints(t *testing.T) {
	samples := make([]storage.PairSample, 0, 10)
	for i := int64(0); i < 10; i++ {
		samples = append(samples, sampleAtBlock(100+i))
	}

	got := downsampleSamples(samples, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}

	wantBlocks := []int64{100, 103, 106, 109}
	for i, want := range wantBlocks {
		if got[i].Block.Int64() != want {
			t.Errorf("sample %d: expected block %d, got %s", i, want, got[i].Block)
		}
	}
}

func TestDownsampleSamplesSinglePoint(t *testing.T) {
	samples := []storage.PairSample{sampleAtBlock(1), sampleAtBlock(2), sampleAtBlock(3)}

	got := downsampleSamples(samples, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0].Block.Int64() != 3 {
		t.Errorf("expected the newest sample, got block %s", got[0].Block)
	}
}

func TestGrowthColumns(t *testing.T) {
	tests := []struct {
		name         string
		newest       storage.PairSample
		previous     storage.PairSample
		wantGrowth   string
		wantPerBlock string
	}{
		{
			name:         "positive growth across blocks",
			newest:       storage.PairSample{PairCount: big.NewInt(1050), Block: big.NewInt(225)},
			previous:     storage.PairSample{PairCount: big.NewInt(1000), Block: big.NewInt(200)},
			wantGrowth:   "50",
			wantPerBlock: "2.000",
		},
		{
			name:         "same block falls back to raw growth",
			newest:       storage.PairSample{PairCount: big.NewInt(1050), Block: big.NewInt(200)},
			previous:     storage.PairSample{PairCount: big.NewInt(1000), Block: big.NewInt(200)},
			wantGrowth:   "50",
			wantPerBlock: "50",
		},
		{
			name:         "counter reset yields negative growth",
			newest:       storage.PairSample{PairCount: big.NewInt(990), Block: big.NewInt(225)},
			previous:     storage.PairSample{PairCount: big.NewInt(1000), Block: big.NewInt(200)},
			wantGrowth:   "-10",
			wantPerBlock: "-0.400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			growth, perBlock := growthColumns(tt.newest, tt.previous)
			if growth != tt.wantGrowth {
				t.Errorf("growth: expected %q, got %q", tt.wantGrowth, growth)
			}
			if perBlock != tt.wantPerBlock {
				t.Errorf("per-block: expected %q, got %q", tt.wantPerBlock, perBlock)
			}
		})
	}
}
