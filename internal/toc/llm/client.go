package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/a3tai/toctree/internal/tlog"
	"github.com/a3tai/toctree/internal/tocerr"
)

const phase = "llm"

// Config tunes the Client's dispatch policy.
type Config struct {
	Concurrency int           // default 10
	CallTimeout time.Duration // default 60s
	MaxRetries  int           // default 3, transient failures only
	BaseBackoff time.Duration // default 500ms, doubled per retry
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	return c
}

// Metrics tracks one Client's counters: total calls, retries consumed,
// re-prompts issued to recover malformed JSON, and failures. They are
// read through Client.Metrics; the Builder's Result does not carry them.
type Metrics struct {
	mu         sync.Mutex
	Calls      int
	Retries    int
	Reprompts  int
	Failures   int
}

func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{Calls: m.Calls, Retries: m.Retries, Reprompts: m.Reprompts, Failures: m.Failures}
}

func (m *Metrics) incr(calls, retries, reprompts, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls += calls
	m.Retries += retries
	m.Reprompts += reprompts
	m.Failures += failures
}

// Client dispatches Requests to a Backend under bounded concurrency,
// retrying transient failures with exponential backoff and re-prompting
// once when JSON-mode output fails to parse.
type Client struct {
	backend Backend
	cfg     Config
	sem     *semaphore.Weighted
	metrics *Metrics
}

// New builds a Client around backend, bounding concurrent in-flight
// calls at cfg.Concurrency the way §4.2's dispatcher is specified to.
func New(backend Backend, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		backend: backend,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		metrics: &Metrics{},
	}
}

// Metrics returns a snapshot of the client's call counters.
func (c *Client) Metrics() Metrics { return c.metrics.Snapshot() }

// Generate issues one call, retrying only transient failures, and
// returns the raw text response. callerPhase is a label (e.g. "structure",
// "verify") used for error context and logging, distinct from the
// llm package's own internal phase tag.
func (c *Client) Generate(ctx context.Context, callerPhase string, req Request) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", tocerr.New(callerPhase, tocerr.KindCancelled, "acquiring LLM concurrency slot", err)
	}
	defer c.sem.Release(1)

	log := tlog.ForPhase(phase, callerPhase)

	var lastErr error
	retries := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.BaseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.metrics.incr(1, retries, 0, 1)
				return "", tocerr.New(callerPhase, tocerr.KindCancelled, "generate cancelled during backoff", ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		text, err := c.backend.Generate(callCtx, req)
		cancel()

		if err == nil {
			c.metrics.incr(1, retries, 0, 0)
			return text, nil
		}

		lastErr = err
		if !isTransient(err) {
			c.metrics.incr(1, retries, 0, 1)
			return "", tocerr.New(callerPhase, tocerr.KindMalformedLLM, "llm backend call failed", err)
		}
		retries++
		log.Warn("transient llm failure, retrying", zap.Error(err), zap.Int("attempt", attempt+1))
	}

	c.metrics.incr(1, retries, 0, 1)
	return "", tocerr.New(callerPhase, tocerr.KindTransientLLM, fmt.Sprintf("exhausted %d retries", c.cfg.MaxRetries), lastErr)
}

// GenerateJSON issues a JSON-mode call and unmarshals the response into
// out. On a parse failure it re-prompts exactly once, appending a
// reminder that the reply must be valid JSON and nothing else, before
// surfacing a malformed-response error.
func (c *Client) GenerateJSON(ctx context.Context, callerPhase string, req Request, out interface{}) error {
	req.JSONMode = true
	if !strings.Contains(strings.ToLower(req.Prompt), "json") {
		req.Prompt += "\n\nRespond with json only."
	}

	text, err := c.Generate(ctx, callerPhase, req)
	if err != nil {
		return err
	}

	if perr := tryUnmarshal(text, out); perr == nil {
		return nil
	}

	c.metrics.incr(0, 0, 1, 0)
	repromptReq := req
	repromptReq.Prompt = req.Prompt + "\n\nYour previous reply was not valid json. Reply again with valid json only, no commentary."

	text, err = c.Generate(ctx, callerPhase, repromptReq)
	if err != nil {
		return err
	}

	if perr := tryUnmarshal(text, out); perr != nil {
		return tocerr.New(callerPhase, tocerr.KindMalformedLLM, "llm response was not valid json after re-prompt", perr)
	}
	return nil
}

func tryUnmarshal(text string, out interface{}) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return json.Unmarshal([]byte(strings.TrimSpace(text)), out)
}
