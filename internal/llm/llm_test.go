// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/doc-collector/pkg/types"
)

func TestMain(m *testing.M) {
	backoffBase = 1 * time.Millisecond
	m.Run()
}

// countingGenerator records calls and tracks peak concurrency.
type countingGenerator struct {
	calls    int32
	inflight int32
	peak     int32
	delay    time.Duration
	fail     int32 // number of leading calls that fail
	err      error
}

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := atomic.AddInt32(&g.calls, 1)
	cur := atomic.AddInt32(&g.inflight, 1)
	defer atomic.AddInt32(&g.inflight, -1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if cur <= p || atomic.CompareAndSwapInt32(&g.peak, p, cur) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if n <= g.fail {
		return "", g.err
	}
	return "echo: " + prompt, nil
}

func TestClient_CacheHit(t *testing.T) {
	gen := &countingGenerator{}
	c := NewClient(gen)

	first, err := c.Complete(context.Background(), "same prompt")
	require.NoError(t, err)
	second, err := c.Complete(context.Background(), "same prompt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gen.calls))
	assert.Equal(t, 1, c.CacheLen())
}

func TestClient_GateBoundsConcurrency(t *testing.T) {
	gen := &countingGenerator{delay: 20 * time.Millisecond}
	c := NewClient(gen, WithConcurrency(2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Complete(context.Background(), fmt.Sprintf("prompt %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(8), atomic.LoadInt32(&gen.calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&gen.peak), int32(2))
}

func TestClient_GateHonoursContext(t *testing.T) {
	gen := &countingGenerator{delay: 200 * time.Millisecond}
	c := NewClient(gen, WithConcurrency(1))

	go c.Complete(context.Background(), "slow")
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "blocked")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_RetriesThenCaches(t *testing.T) {
	gen := &countingGenerator{fail: 1, err: errors.New("transient")}
	c := NewClient(gen, WithRetries(2))

	resp, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "echo: p", resp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gen.calls))
}

func TestClient_UnavailableNotRetriedNorCached(t *testing.T) {
	gen := &countingGenerator{fail: 10, err: fmt.Errorf("%w: refused", ErrUnavailable)}
	c := NewClient(gen, WithRetries(3))

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gen.calls))
	assert.Equal(t, 0, c.CacheLen())
}

func TestResponseCache_EvictsOldestInsertion(t *testing.T) {
	c := NewResponseCache(2)
	c.Put("a", "1")
	c.Put("b", "2")

	// Reading "a" does not protect it from eviction.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", "3")
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Put("b", "updated")
	v, _ := c.Get("b")
	assert.Equal(t, "updated", v)
	assert.Equal(t, 2, c.Len())
}

func TestResponseCache_BoundedUnderChurn(t *testing.T) {
	c := NewResponseCache(3)
	for i := 0; i < 10000; i++ {
		c.Put(fmt.Sprintf("k%d", i), "v")
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.order.Len())
	for _, k := range []string{"k9997", "k9998", "k9999"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	_, ok := c.Get("k9996")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.order.Len())
	c.Put("again", "v")
	assert.Equal(t, 1, c.Len())
}

func TestOllama_GenerateContract(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"response": "  [\"a\"]  ", "done": true})
	}))
	defer ts.Close()

	o := NewOllama(types.LLMConfig{BaseURL: ts.URL, Model: "tiny"}, ts.Client())
	resp, err := o.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, resp)

	assert.Equal(t, "tiny", got["model"])
	assert.Equal(t, "hello", got["prompt"])
	assert.Equal(t, false, got["stream"])
	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, DefaultTemperature, opts["temperature"])
	assert.Equal(t, DefaultTopP, opts["top_p"])
	assert.Equal(t, float64(DefaultMaxTokens), opts["max_tokens"])
	assert.Equal(t, float64(DefaultNumCtx), opts["num_ctx"])
	assert.Equal(t, float64(DefaultNumPredict), opts["num_predict"])
}

func TestOllama_GenerateStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, true, req["stream"])
		fmt.Fprintln(w, `{"response":"Hel","done":false}`)
		fmt.Fprintln(w, `{"response":"lo","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
		fmt.Fprintln(w, `{"response":"ignored","done":false}`)
	}))
	defer ts.Close()

	o := NewOllama(types.LLMConfig{BaseURL: ts.URL}, ts.Client())
	var chunks []string
	resp, err := o.GenerateStream(context.Background(), "p", func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestOllama_StreamWithoutDone(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
	}))
	defer ts.Close()

	o := NewOllama(types.LLMConfig{BaseURL: ts.URL}, ts.Client())
	_, err := o.GenerateStream(context.Background(), "p", nil)
	assert.Error(t, err)
}

func TestOllama_Available(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	o := NewOllama(types.LLMConfig{BaseURL: ts.URL}, ts.Client())
	assert.True(t, o.Available(context.Background()))
	assert.True(t, NewClient(o).Available(context.Background()))

	ts.Close()
	assert.False(t, o.Available(context.Background()))
	_, err := o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllama_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer ts.Close()

	o := NewOllama(types.LLMConfig{BaseURL: ts.URL}, ts.Client())
	_, err := o.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestAnthropicBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultAnthropicModel, req.Model)
		require.Len(t, req.Messages, 1)
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"relevant\": true}"}]}`))
	}))
	defer ts.Close()

	old := anthropicAPIURL
	anthropicAPIURL = ts.URL
	defer func() { anthropicAPIURL = old }()

	gen, err := NewGenerator(types.LLMConfig{Provider: types.ProviderAnthropic, APIKey: "secret", Model: "llama3.2:3b"}, ts.Client())
	require.NoError(t, err)
	resp, err := gen.Generate(context.Background(), "judge this")
	require.NoError(t, err)
	assert.Equal(t, `{"relevant": true}`, resp)
}

func TestOpenAIBackend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chat/completions")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","created":0,"model":"m",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":" [\"q\"] "},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	gen, err := NewGenerator(types.LLMConfig{Provider: types.ProviderOpenAI, BaseURL: ts.URL, Model: "m"}, ts.Client())
	require.NoError(t, err)
	resp, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `["q"]`, resp)
}

func TestNewGenerator_Errors(t *testing.T) {
	_, err := NewGenerator(types.LLMConfig{Provider: "nope"}, nil)
	assert.Error(t, err)
	_, err = NewGenerator(types.LLMConfig{Provider: types.ProviderAnthropic}, nil)
	assert.Error(t, err)
}
