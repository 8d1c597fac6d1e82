package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockProvider implements Provider for testing.
type mockProvider struct {
	mu        sync.Mutex
	calls     int
	batches   [][]string
	dimension int
	failBatch int // 1-based call number to fail, 0 = never
	err       error
}

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.batches = append(m.batches, texts)

	if m.failBatch > 0 && m.calls == m.failBatch {
		if m.err != nil {
			return nil, m.err
		}
		return nil, errors.New("provider unavailable")
	}

	dim := m.dimension
	if dim == 0 {
		dim = 4
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, dim)
		// Encode text length so tests can verify index alignment.
		v[0] = float32(len(text))
		vecs[i] = v
	}
	return vecs, nil
}

func newTestClient(t *testing.T, provider Provider, cfg Config) *Client {
	t.Helper()
	client, err := NewClient(provider, cfg, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient_RequiresProvider(t *testing.T) {
	if _, err := NewClient(nil, Config{}, nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	provider := &mockProvider{}
	client := newTestClient(t, provider, Config{Dimension: 4})

	vecs, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %d vectors, want nil", len(vecs))
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
}

func TestEmbedBatch_SubBatching(t *testing.T) {
	tests := []struct {
		name      string
		texts     int
		batchSize int
		wantCalls int
	}{
		{name: "single sub-batch", texts: 3, batchSize: 10, wantCalls: 1},
		{name: "exact multiple", texts: 10, batchSize: 5, wantCalls: 2},
		{name: "remainder batch", texts: 11, batchSize: 5, wantCalls: 3},
		{name: "one text per batch", texts: 4, batchSize: 1, wantCalls: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			client := newTestClient(t, provider, Config{BatchSize: tt.batchSize, Dimension: 4, Concurrency: 1})

			texts := make([]string, tt.texts)
			for i := range texts {
				texts[i] = fmt.Sprintf("text-%d", i)
			}

			vecs, err := client.EmbedBatch(context.Background(), texts)
			if err != nil {
				t.Fatalf("EmbedBatch failed: %v", err)
			}
			if len(vecs) != tt.texts {
				t.Errorf("got %d vectors, want %d", len(vecs), tt.texts)
			}
			if provider.calls != tt.wantCalls {
				t.Errorf("provider called %d times, want %d", provider.calls, tt.wantCalls)
			}
		})
	}
}

func TestEmbedBatch_OrderPreservedUnderConcurrency(t *testing.T) {
	provider := &mockProvider{}
	client := newTestClient(t, provider, Config{BatchSize: 2, Dimension: 4, Concurrency: 4})

	// Texts of strictly increasing length so vector[0] identifies the input.
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}

	vecs, err := client.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d encodes length %d, want %d (order not preserved)", i, int(v[0]), len(texts[i]))
		}
	}
}

func TestEmbedBatch_SubBatchFailureFailsWhole(t *testing.T) {
	provider := &mockProvider{failBatch: 2, err: errors.New("rate limited")}
	client := newTestClient(t, provider, Config{BatchSize: 2, Dimension: 4, Concurrency: 1})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err == nil {
		t.Fatal("expected error when a sub-batch fails")
	}
	if !errors.Is(err, provider.err) {
		t.Errorf("error %v does not wrap provider error", err)
	}
	// The failing sub-batch must be identifiable for targeted retry.
	if got := err.Error(); !strings.Contains(got, "sub-batch 1") {
		t.Errorf("error %q does not identify the failed sub-batch", got)
	}
}

func TestEmbedBatch_DimensionMismatchIsFatal(t *testing.T) {
	provider := &mockProvider{dimension: 8}
	client := newTestClient(t, provider, Config{BatchSize: 10, Dimension: 4})

	_, err := client.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedBatch_VectorCountMismatch(t *testing.T) {
	provider := &truncatingProvider{}
	client := newTestClient(t, provider, Config{BatchSize: 10, Dimension: 4})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("got %v, want ErrEmptyResponse", err)
	}
}

// truncatingProvider returns fewer vectors than texts.
type truncatingProvider struct{}

func (*truncatingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{make([]float32, 4)}, nil
}

func TestEmbedOne(t *testing.T) {
	provider := &mockProvider{}
	client := newTestClient(t, provider, Config{Dimension: 4})

	vec, err := client.EmbedOne(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedOne failed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("got dimension %d, want 4", len(vec))
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestConfig_ConcurrencyCapped(t *testing.T) {
	client := newTestClient(t, &mockProvider{}, Config{Concurrency: 64})
	if client.cfg.Concurrency != MaxConcurrency {
		t.Errorf("concurrency = %d, want capped at %d", client.cfg.Concurrency, MaxConcurrency)
	}
}
