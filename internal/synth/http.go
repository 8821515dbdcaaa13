package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSynth posts chunks to a speech endpoint with an OpenAI-compatible
// request body and reads the audio bytes from the response.
type HTTPSynth struct {
	endpoint string
	apiKey   string
	model    string
	format   string
	client   *http.Client
}

type httpRequest struct {
	Model          string `json:"model,omitempty"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func NewHTTPSynth(endpoint, apiKey, model, format string) *HTTPSynth {
	return &HTTPSynth{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		format:   format,
		client:   http.DefaultClient,
	}
}

func (h *HTTPSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(httpRequest{
		Model:          h.model,
		Input:          req.Text,
		Voice:          req.Voice,
		ResponseFormat: h.format,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, &ServiceError{Voice: req.Voice, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ServiceError{
			Voice: req.Voice,
			Err:   fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, &ServiceError{Voice: req.Voice, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &ServiceError{Voice: req.Voice, Err: fmt.Errorf("endpoint returned no audio")}
	}
	return audio, nil
}
