package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oslerlabs/osler/internal/gateway"
)

// ProxyClient calls a running osler proxy's generation endpoint. This is the
// same path a browser client takes: the credential stays behind the proxy.
type ProxyClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type proxyRequest struct {
	Messages  []gateway.Message `json:"messages"`
	System    string            `json:"system,omitempty"`
	MaxTokens int               `json:"max_tokens,omitempty"`
}

func (p *ProxyClient) Call(ctx context.Context, messages []gateway.Message, maxTokens int, system string) (string, error) {
	body, err := json.Marshal(proxyRequest{Messages: messages, System: system, MaxTokens: maxTokens})
	if err != nil {
		return "", fmt.Errorf("encoding proxy request: %w", err)
	}

	url := strings.TrimSuffix(p.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling proxy: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading proxy response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var pe struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &pe) == nil && pe.Error != "" {
			return "", fmt.Errorf("%s", pe.Error)
		}
		return "", fmt.Errorf("proxy error: %d", resp.StatusCode)
	}

	return gateway.Text(data)
}

// DirectCaller runs calls straight through a gateway client, for CLI use
// where the credential is already local.
type DirectCaller struct {
	Client *gateway.Client
	Model  string
}

func (d *DirectCaller) Call(ctx context.Context, messages []gateway.Message, maxTokens int, system string) (string, error) {
	model := d.Model
	if model == "" {
		model = gateway.DefaultModel
	}
	if maxTokens <= 0 || maxTokens > gateway.MaxTokensCeiling {
		maxTokens = gateway.MaxTokensCeiling
	}
	payload, err := d.Client.Send(ctx, gateway.Request{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}
	return gateway.Text(payload)
}
