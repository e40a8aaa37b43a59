package razorpay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const maxScriptBytes = 2 << 20

// ScriptLoader fetches the checkout widget script at most once per process.
// A failed fetch is not cached, so the next checkout tries again.
type ScriptLoader struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	script []byte
}

// NewScriptLoader builds a loader for url.
func NewScriptLoader(url string, client *http.Client) *ScriptLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &ScriptLoader{url: url, client: client}
}

// Ensure loads the script unless it is already loaded.
func (l *ScriptLoader) Ensure(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.script != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("build script request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch checkout script: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch checkout script: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return fmt.Errorf("read checkout script: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("fetch checkout script: empty body")
	}
	l.script = body
	return nil
}

// Script returns the loaded script.
func (l *ScriptLoader) Script() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.script, l.script != nil
}
