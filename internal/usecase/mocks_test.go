package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/compintel/backend/internal/domain"
)

// modelReply is one scripted response of MockModelClient
type modelReply struct {
	text string
	err  error
}

// MockModelClient is a mock implementation of domain.ModelClient that replays
// scripted replies in order and repeats the last one
type MockModelClient struct {
	replies   []modelReply
	prompts   []string
	maxTokens []int
}

func NewMockModelClient(replies ...modelReply) *MockModelClient {
	return &MockModelClient{replies: replies}
}

func (m *MockModelClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.maxTokens = append(m.maxTokens, maxTokens)
	if len(m.replies) == 0 {
		return "[]", nil
	}
	idx := min(len(m.prompts)-1, len(m.replies)-1)
	return m.replies[idx].text, m.replies[idx].err
}

func (m *MockModelClient) calls() int {
	return len(m.prompts)
}

// MockPacer is a mock implementation of domain.Pacer that records every wait
// on a virtual clock instead of sleeping
type MockPacer struct {
	mu       sync.Mutex
	waits    int
	backoffs []time.Duration
	waitErr  error
}

func (m *MockPacer) Wait(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
	if m.waitErr != nil {
		return m.waitErr
	}
	return ctx.Err()
}

func (m *MockPacer) Backoff(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoffs = append(m.backoffs, d)
	return ctx.Err()
}

func (m *MockPacer) totalBackoff() time.Duration {
	var total time.Duration
	for _, d := range m.backoffs {
		total += d
	}
	return total
}

// MockPageFetcher is a mock implementation of domain.PageFetcher
type MockPageFetcher struct {
	pages   map[string]string
	errors  map[string]error
	fetched []string
}

func NewMockPageFetcher() *MockPageFetcher {
	return &MockPageFetcher{
		pages:  make(map[string]string),
		errors: make(map[string]error),
	}
}

func (m *MockPageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.fetched = append(m.fetched, url)
	if err, ok := m.errors[url]; ok {
		return "", err
	}
	if page, ok := m.pages[url]; ok {
		return page, nil
	}
	return "<html><body>Boiler cover from £12 a month</body></html>", nil
}

// MockMetrics is a mock implementation of domain.MetricsRecorder
type MockMetrics struct {
	fetches    map[string]int
	modelCalls map[string]int
	parses     map[string]int
	backoffs   []time.Duration
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		fetches:    make(map[string]int),
		modelCalls: make(map[string]int),
		parses:     make(map[string]int),
	}
}

func (m *MockMetrics) FetchCompleted(outcome string)     { m.fetches[outcome]++ }
func (m *MockMetrics) ModelCallCompleted(outcome string) { m.modelCalls[outcome]++ }
func (m *MockMetrics) ParseCompleted(strategy string, records int) {
	m.parses[strategy]++
}
func (m *MockMetrics) RateLimitBackoff(wait time.Duration) { m.backoffs = append(m.backoffs, wait) }

var _ domain.ModelClient = (*MockModelClient)(nil)
var _ domain.Pacer = (*MockPacer)(nil)
var _ domain.PageFetcher = (*MockPageFetcher)(nil)
var _ domain.MetricsRecorder = (*MockMetrics)(nil)
