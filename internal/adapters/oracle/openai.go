package oracle

// openai.go — oráculo de probabilidad sobre una API de chat completions.
//
// El modelo recibe la pregunta del mercado y su precio actual, y responde
// en un formato fijo que se parsea por regex. Cualquier fallo de red o de
// parseo se traduce en error: el oráculo "no opina" y el mercado se salta.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

const (
	completionsPath = "/v1/chat/completions"
	requestTimeout  = 60 * time.Second
	maxRetries      = 2
	retryWait       = 2 * time.Second

	// Límites del estimador: nunca certeza absoluta en ninguna dirección.
	probFloor = 0.01
	probCeil  = 0.99
)

const systemPrompt = `You are a superforecaster estimating probabilities for prediction market questions.
Given a market question, its description and the current market price, estimate the true probability of the YES outcome.
Be calibrated: the market price already aggregates a lot of information, so only deviate from it when you have a concrete reason.
Respond in EXACTLY this format, nothing else:
PROBABILITY: 0.XX
CONFIDENCE: high|medium|low
RATIONALE: <one or two sentences>`

var (
	probabilityRe = regexp.MustCompile(`(?i)PROBABILITY:\s*([0-9]*\.?[0-9]+)`)
	confidenceRe  = regexp.MustCompile(`(?i)CONFIDENCE:\s*(high|medium|low)`)
	rationaleRe   = regexp.MustCompile(`(?i)RATIONALE:\s*(.+)`)
)

// Oracle estima probabilidades llamando a una API tipo OpenAI.
// Implementa ports.Oracle.
type Oracle struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New crea un Oracle. baseURL sin slash final, p.ej. "https://api.openai.com".
func New(baseURL, apiKey, model string) *Oracle {
	return &Oracle{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

// chatRequest es el body de POST /v1/chat/completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Estimate pide al modelo una probabilidad para la pregunta dada.
func (o *Oracle) Estimate(ctx context.Context, question string, marketPrice float64, description string) (domain.Estimate, error) {
	user := fmt.Sprintf("Question: %s\n\nCurrent market price (implied probability of YES): %.2f", question, marketPrice)
	if description != "" {
		if len(description) > 2000 {
			description = description[:2000]
		}
		user += "\n\nMarket description: " + description
	}

	content, err := o.complete(ctx, user)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("oracle.Estimate: %w", err)
	}

	est, err := parseEstimate(content)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("oracle.Estimate: %w", err)
	}
	return est, nil
}

// complete hace la llamada de chat con retries para errores transitorios.
func (o *Oracle) complete(ctx context.Context, user string) (string, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := o.baseURL + completionsPath

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		resp, err := o.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("api error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("empty choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// parseEstimate extrae la estimación del formato de respuesta fijo.
// La probabilidad se recorta a [0.01, 0.99]: el oráculo nunca opina con
// certeza absoluta.
func parseEstimate(content string) (domain.Estimate, error) {
	m := probabilityRe.FindStringSubmatch(content)
	if m == nil {
		return domain.Estimate{}, fmt.Errorf("no PROBABILITY in response: %q", truncate(content, 120))
	}

	prob, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("bad probability %q: %w", m[1], err)
	}
	if prob < 0 || prob > 1 {
		return domain.Estimate{}, fmt.Errorf("probability out of range: %.4f", prob)
	}
	if prob < probFloor {
		prob = probFloor
	}
	if prob > probCeil {
		prob = probCeil
	}

	est := domain.Estimate{Probability: prob, Confidence: domain.ConfidenceLow}

	if m := confidenceRe.FindStringSubmatch(content); m != nil {
		est.Confidence = domain.Confidence(strings.ToLower(m[1]))
	}
	if m := rationaleRe.FindStringSubmatch(content); m != nil {
		est.Rationale = strings.TrimSpace(m[1])
	}

	return est, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
