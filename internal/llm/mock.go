package llm

import (
	"context"
	"sync"
)

// MockClient is a configurable extraction client for testing. Queue
// responses with Enqueue, or set Response for a fixed reply.
type MockClient struct {
	mu        sync.Mutex
	Response  string
	Err       error
	responses []string
	errs      []error

	// Call tracking for assertions
	Calls []MockCall
}

type MockCall struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

func NewMockClient() *MockClient {
	return &MockClient{Response: "{}"}
}

// Enqueue adds a response (and optional error) returned by the next call.
// Queued responses take precedence over the fixed Response field.
func (c *MockClient) Enqueue(response string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	c.errs = append(c.errs, err)
}

func (c *MockClient) Complete(_ context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, MockCall{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  temperature,
	})

	if len(c.responses) > 0 {
		resp, err := c.responses[0], c.errs[0]
		c.responses = c.responses[1:]
		c.errs = c.errs[1:]
		return resp, err
	}
	return c.Response, c.Err
}
