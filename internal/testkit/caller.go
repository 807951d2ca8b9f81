package testkit

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/crmarques/jelapi/faults"
)

// Call is one remote call seen by a Caller.
type Call struct {
	Function string
	Args     map[string]any
}

// Reply computes the reply of a remote call from its arguments.
type Reply func(args map[string]any) (map[string]any, error)

// Caller is a connector.Caller that records calls and answers them from
// registered replies. Calls to unregistered functions fail with a
// RemoteCallError.
type Caller struct {
	mu      sync.Mutex
	replies map[string][]*registeredReply
	calls   []Call
}

type registeredReply struct {
	reply Reply
	used  bool
}

func NewCaller() *Caller {
	return &Caller{replies: map[string][]*registeredReply{}}
}

// On answers every call to function with a copy of body.
func (c *Caller) On(function string, body map[string]any) *Caller {
	return c.Handle(function, func(map[string]any) (map[string]any, error) {
		return cloneBody(body), nil
	})
}

// Handle registers a reply. Replies of the same function are used in order,
// the last one answering every later call until a new reply is registered.
func (c *Caller) Handle(function string, reply Reply) *Caller {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.replies[function][:0]
	for _, registered := range c.replies[function] {
		if !registered.used {
			pending = append(pending, registered)
		}
	}
	c.replies[function] = append(pending, &registeredReply{reply: reply})
	return c
}

// Fail makes every call to function return err.
func (c *Caller) Fail(function string, err error) *Caller {
	return c.Handle(function, func(map[string]any) (map[string]any, error) {
		return nil, err
	})
}

func (c *Caller) Call(_ context.Context, function string, args map[string]any) (map[string]any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Function: function, Args: maps.Clone(args)})
	replies := c.replies[function]
	var reply Reply
	if len(replies) > 0 {
		replies[0].used = true
		reply = replies[0].reply
		if len(replies) > 1 {
			c.replies[function] = replies[1:]
		}
	}
	c.mu.Unlock()

	if reply == nil {
		return nil, faults.RemoteCall(fmt.Sprintf("unexpected call to %s", function), nil)
	}
	return reply(args)
}

func (c *Caller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([]Call, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// Functions lists the called functions in call order.
func (c *Caller) Functions() []string {
	calls := c.Calls()
	functions := make([]string, 0, len(calls))
	for _, call := range calls {
		functions = append(functions, call.Function)
	}
	return functions
}

func (c *Caller) Count(function string) int {
	count := 0
	for _, call := range c.Calls() {
		if call.Function == function {
			count++
		}
	}
	return count
}

// Last returns the last call to function.
func (c *Caller) Last(function string) (Call, bool) {
	calls := c.Calls()
	for idx := len(calls) - 1; idx >= 0; idx-- {
		if calls[idx].Function == function {
			return calls[idx], true
		}
	}
	return Call{}, false
}

// Reset forgets recorded calls and keeps the replies.
func (c *Caller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func cloneBody(body map[string]any) map[string]any {
	if body == nil {
		return nil
	}
	cloned := make(map[string]any, len(body))
	for key, value := range body {
		cloned[key] = cloneValue(value)
	}
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneBody(typed)
	case []any:
		cloned := make([]any, len(typed))
		for idx, item := range typed {
			cloned[idx] = cloneValue(item)
		}
		return cloned
	case []map[string]any:
		cloned := make([]any, len(typed))
		for idx, item := range typed {
			cloned[idx] = cloneBody(item)
		}
		return cloned
	default:
		return value
	}
}
