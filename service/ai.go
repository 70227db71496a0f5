package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joshuaclark5/MicroFreelanceHub-sub000/config"
)

// AIService proxies the generative text API used for drafting assistance. The
// upstream contract is "JSON or null on failure": the surrounding app treats a
// missing suggestion as nothing to show, never as a hard error.
type AIService struct {
	config     *config.AIConfig
	httpClient *http.Client
}

func NewAIService(cfg *config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type aiGenerateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
}

type aiGenerateResponse struct {
	Output string `json:"output"`
}

// DraftSuggestion is the structured drafting output shown in the editor
type DraftSuggestion struct {
	Title        string   `json:"title"`
	Deliverables []string `json:"deliverables"`
	Summary      string   `json:"summary"`
}

// DraftDeliverables asks the text API for a structured SOW draft for the
// given client and brief.
func (s *AIService) DraftDeliverables(ctx context.Context, clientName, brief string) (*DraftSuggestion, error) {
	prompt := fmt.Sprintf(
		"Draft a statement of work for client %q based on this brief: %s\n"+
			"Respond with a JSON object with keys title (string), deliverables "+
			"(array of strings) and summary (string).",
		clientName, brief,
	)

	reqBody := aiGenerateRequest{
		Model:  s.config.Model,
		Prompt: prompt,
		Format: "json",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/v1/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text API error: status %d", resp.StatusCode)
	}

	var result aiGenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}

	var suggestion DraftSuggestion
	if err := json.Unmarshal([]byte(result.Output), &suggestion); err != nil {
		// The model did not return valid JSON; the caller surfaces null
		return nil, fmt.Errorf("text API returned non-JSON output: %w", err)
	}
	return &suggestion, nil
}
