// Package mock provides a test double for the eval package interfaces.
//
// Use Provider to verify Complete calls and feed controlled model answers to
// the evaluation pipeline.
package mock

import (
	"context"
	"sync"

	"github.com/assessly-ai/assessly/pkg/provider/eval"
)

// CompleteCall records a single invocation of Provider.Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the Request passed to Complete.
	Req eval.Request
}

// Provider is a mock implementation of eval.Provider.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete when CompleteErr is nil. If both are
	// nil, Complete returns an empty Response.
	Response *eval.Response

	// Responses, if non-empty, is consumed one element per Complete call
	// before falling back to Response. Use it to script multi-call behavior.
	Responses []*eval.Response

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFn, if non-nil, overrides all other configuration.
	CompleteFn func(ctx context.Context, req eval.Request) (*eval.Response, error)

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall
}

// Complete records the call and returns the configured response or error.
func (p *Provider) Complete(ctx context.Context, req eval.Request) (*eval.Response, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFn
	var resp *eval.Response
	if len(p.Responses) > 0 {
		resp = p.Responses[0]
		p.Responses = p.Responses[1:]
	} else {
		resp = p.Response
	}
	err := p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &eval.Response{}, nil
	}
	return resp, nil
}

// CallCount returns the number of recorded Complete calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// Ensure Provider implements eval.Provider at compile time.
var _ eval.Provider = (*Provider)(nil)
