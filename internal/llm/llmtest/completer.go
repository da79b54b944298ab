// Package llmtest provides a scripted StructuredCompleter for pipeline tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/joseph-ayodele/procurement-intake/internal/llm"
)

// Response is one scripted reply. Block makes the call wait for ctx to end.
type Response struct {
	JSON  string
	Err   error
	Block bool
}

// Completer replays responses in order per schema name and records every request.
type Completer struct {
	mu     sync.Mutex
	script map[string][]Response
	calls  []llm.StructuredRequest
}

var _ llm.StructuredCompleter = (*Completer)(nil)

func NewCompleter() *Completer {
	return &Completer{script: map[string][]Response{}}
}

// On queues responses for the schema name.
func (c *Completer) On(schema string, rs ...Response) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script[schema] = append(c.script[schema], rs...)
	return c
}

// OnJSON queues plain JSON replies.
func (c *Completer) OnJSON(schema string, docs ...string) *Completer {
	for _, d := range docs {
		c.On(schema, Response{JSON: d})
	}
	return c
}

func (c *Completer) CompleteStructured(ctx context.Context, req llm.StructuredRequest) ([]byte, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	q := c.script[req.Name]
	if len(q) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("llmtest: no scripted response for %q", req.Name)
	}
	r := q[0]
	c.script[req.Name] = q[1:]
	c.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return []byte(r.JSON), nil
}

// Calls returns the recorded requests for schema, or all of them when schema is empty.
func (c *Completer) Calls(schema string) []llm.StructuredRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []llm.StructuredRequest
	for _, r := range c.calls {
		if schema == "" || r.Name == schema {
			out = append(out, r)
		}
	}
	return out
}
