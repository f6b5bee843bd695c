package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tabbylabs/mintpipe/internal/chain"
	"github.com/tabbylabs/mintpipe/internal/provider"
)

// StubAdapter is a configurable provider.Adapter. With a nil SubmitFn it
// reports the standard milestones and returns a deterministic artifact URL.
type StubAdapter struct {
	AdapterName string
	SubmitFn    func(ctx context.Context, prompt provider.Prompt, options map[string]any, report provider.ProgressFunc) (*provider.Submission, error)

	mu    sync.Mutex
	calls int
}

func (s *StubAdapter) Name() string                 { return s.AdapterName }
func (s *StubAdapter) Supports(map[string]any) bool { return true }

func (s *StubAdapter) Estimated(map[string]any) provider.Estimate {
	return provider.Estimate{}
}

func (s *StubAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return options, nil
}

func (s *StubAdapter) Submit(ctx context.Context, prompt provider.Prompt, options map[string]any, report provider.ProgressFunc) (*provider.Submission, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.SubmitFn != nil {
		return s.SubmitFn(ctx, prompt, options, report)
	}
	report(20, "submitted to "+s.AdapterName)
	report(50, s.AdapterName+" generation accepted")
	// A token of latency keeps completion durations non-zero.
	time.Sleep(2 * time.Millisecond)
	report(80, "artifact received from "+s.AdapterName)
	return &provider.Submission{ImageURL: "ipfs://artifact-" + s.AdapterName, LatencyMs: 2}, nil
}

// Calls returns how many times Submit ran.
func (s *StubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// mockFinalizerBaseBlock is where the mock chain starts mining.
const mockFinalizerBaseBlock = 1000

// MockFinalizer records finalized mints in memory. Each successful call
// mines one block past mockFinalizerBaseBlock.
type MockFinalizer struct {
	mu        sync.Mutex
	finalized map[int64]string
	mined     int64

	// Err, when set, fails every FinalizeMint call.
	Err error
}

// NewMockFinalizer returns an empty MockFinalizer.
func NewMockFinalizer() *MockFinalizer {
	return &MockFinalizer{finalized: make(map[int64]string)}
}

func (f *MockFinalizer) FinalizeMint(ctx context.Context, tokenID int64, uri string) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.mined++
	f.finalized[tokenID] = uri
	return &chain.Receipt{
		TxHash:      fmt.Sprintf("0xhash%d", tokenID),
		BlockNumber: mockFinalizerBaseBlock + f.mined,
	}, nil
}

// LastBlock reports the block number of the most recent mined receipt.
func (f *MockFinalizer) LastBlock() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mined == 0 {
		return 0
	}
	return mockFinalizerBaseBlock + f.mined
}

func (f *MockFinalizer) TokenURI(ctx context.Context, tokenID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uri, ok := f.finalized[tokenID]
	if !ok {
		return "", chain.ErrTokenNotMinted
	}
	return uri, nil
}

func (f *MockFinalizer) OwnerOf(ctx context.Context, tokenID int64) (string, error) {
	return "0x1111111111111111111111111111111111111111", nil
}

// FinalizedURI reports the URI recorded for a token, if any.
func (f *MockFinalizer) FinalizedURI(tokenID int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uri, ok := f.finalized[tokenID]
	return uri, ok
}
