package rag

import (
	"context"
	"fmt"
	"strings"
)

const defaultSystemPrompt = "You are a study assistant. Answer using only the " +
	"provided context passages. When the context does not contain the answer, " +
	"say so instead of guessing. Answer in the language of the question."

const noContentAnswer = "I don't have any indexed material that covers this question yet."

// streamBuffer bounds the event channel so a slow consumer applies
// backpressure to the provider instead of growing memory.
const streamBuffer = 16

func (r GenerateRequest) searchRequest() SearchRequest {
	if r.Search != nil {
		s := *r.Search
		s.Query = r.Query
		s.TenantID = r.TenantID
		return s
	}
	return NewSearchRequest(r.Query, r.TenantID)
}

func (r GenerateRequest) systemPrompt() string {
	if strings.TrimSpace(r.SystemPrompt) != "" {
		return r.SystemPrompt
	}
	return defaultSystemPrompt
}

func passages(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out
}

// Generate answers a query grounded in retrieved passages. With no
// relevant content in scope the generator is not called at all; a fixed
// no-content answer with NoContent set is returned instead.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", ErrConfiguration)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrEmptyInput)
	}

	search, err := e.Search(ctx, req.searchRequest())
	if err != nil {
		return nil, err
	}
	if len(search.Results) == 0 {
		return &GenerateResponse{
			Answer:    noContentAnswer,
			Sources:   []SearchResult{},
			NoContent: true,
		}, nil
	}

	gen, err := e.generator.Generate(ctx, GenerationRequest{
		SystemPrompt: req.systemPrompt(),
		Query:        req.Query,
		Context:      passages(search.Results),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generation: %w", ErrProvider, err)
	}

	return &GenerateResponse{
		Answer:     gen.Text,
		Sources:    search.Results,
		TokensUsed: gen.TokensUsed,
	}, nil
}

// GenerateStream answers a query as a stream of events: zero or more
// text events, then one sources event, then channel close. An error event
// terminates the stream instead. The channel is always closed; cancelling
// ctx stops the forwarding goroutine.
func (e *Engine) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", ErrConfiguration)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrEmptyInput)
	}

	search, err := e.Search(ctx, req.searchRequest())
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, streamBuffer)

	if len(search.Results) == 0 {
		go func() {
			defer close(events)
			emit(ctx, events, StreamEvent{Type: StreamText, Text: noContentAnswer})
			emit(ctx, events, StreamEvent{Type: StreamSources, Sources: []SearchResult{}})
		}()
		return events, nil
	}

	provider, err := e.generator.GenerateStream(ctx, GenerationRequest{
		SystemPrompt: req.systemPrompt(),
		Query:        req.Query,
		Context:      passages(search.Results),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: starting generation stream: %w", ErrProvider, err)
	}

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				emit(ctx, events, StreamEvent{Type: StreamError, Err: ctx.Err()})
				return
			case chunk, ok := <-provider:
				if !ok {
					emit(ctx, events, StreamEvent{Type: StreamSources, Sources: search.Results})
					return
				}
				if chunk.Err != nil {
					emit(ctx, events, StreamEvent{
						Type: StreamError,
						Err:  fmt.Errorf("%w: generation stream: %w", ErrProvider, chunk.Err),
					})
					return
				}
				if !emit(ctx, events, StreamEvent{Type: StreamText, Text: chunk.Text}) {
					return
				}
			}
		}
	}()
	return events, nil
}

// emit sends an event unless ctx is already cancelled. Returns false when
// the send was abandoned.
func emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
