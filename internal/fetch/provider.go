// Grounded on a provider-factory abstraction (Provider interface,
// ProviderFactory, ProviderType constants) and a Gemini-backed client —
// the concrete implementations behind the Fetcher boundary.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ProviderType selects a concrete Fetcher implementation.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderMock   ProviderType = "mock"
)

var (
	ErrMissingAPIKey       = errors.New("fetch: missing api_key")
	ErrUnsupportedProvider = errors.New("fetch: unsupported provider")
)

// FetcherFactory builds a Fetcher by provider type.
type FetcherFactory struct{}

// NewFetcherFactory returns a new factory.
func NewFetcherFactory() *FetcherFactory {
	return &FetcherFactory{}
}

// CreateFetcher builds the requested provider.
func (f *FetcherFactory) CreateFetcher(ctx context.Context, providerType ProviderType, config map[string]string) (Fetcher, error) {
	switch providerType {
	case ProviderGemini:
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewGeminiFetcher(ctx, apiKey, config["model"])
	case ProviderMock:
		return NewMockFetcher(nil), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// GeminiFetcher adapts a genai.Client to the Fetcher boundary. Its
// internals (prompt construction, model selection) are an implementation
// detail behind that boundary — only the contract shape matters downstream.
type GeminiFetcher struct {
	client *genai.Client
	model  string
}

// NewGeminiFetcher opens a genai client for the given API key.
func NewGeminiFetcher(ctx context.Context, apiKey, model string) (*GeminiFetcher, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("fetch: create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiFetcher{client: client, model: model}, nil
}

// Close releases the underlying client.
func (g *GeminiFetcher) Close() error {
	return g.client.Close()
}

func (g *GeminiFetcher) generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("fetch: generate content: %w", err)
	}
	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	if out == "" {
		return "", fmt.Errorf("fetch: empty response")
	}
	return out, nil
}

// ExecuteDirect asks the model to fetch and extract articles from url. It
// first does a best-effort lightweight HTML pre-fetch to surface a
// meta-tag/relative-time date hint into the prompt: the model's own fetch is
// not always reliable at locating the publish date, but a plain HTTP GET +
// goquery selector walk usually is.
func (g *GeminiFetcher) ExecuteDirect(ctx context.Context, url, prompt, source string) (string, error) {
	fullPrompt := fmt.Sprintf("%s\n\nSource: %s\nURL: %s", prompt, source, url)
	if hint := g.dateHint(ctx, url); hint != "" {
		fullPrompt += fmt.Sprintf("\n\nDetected date hint from the page (use verbatim as dateMetaContent if you cannot find a better one): %s", hint)
	}
	return g.generate(ctx, fullPrompt)
}

// dateHint best-effort fetches url and extracts a meta-date or
// relative-time hint via goquery. Any failure yields an empty hint; this is
// a prompt-quality aid, never a hard dependency of the fetch.
func (g *GeminiFetcher) dateHint(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	if hint := ExtractHTMLMetaDate(doc); hint != "" {
		return hint
	}
	return ExtractHTMLRelativeTimeText(doc, "")
}

// ExecuteSearch asks the model to search and extract articles for query.
func (g *GeminiFetcher) ExecuteSearch(ctx context.Context, query, prompt, source string) (string, error) {
	fullPrompt := fmt.Sprintf("%s\n\nSource: %s\nQuery: %s", prompt, source, query)
	return g.generate(ctx, fullPrompt)
}

// MockFetcher returns canned responses, keyed by url or query. Grounded on
// a NewMockProvider() pattern; the default test double for the Fetcher
// boundary.
type MockFetcher struct {
	Responses map[string]string // key: url or query
	Err       error
}

// NewMockFetcher builds a MockFetcher with the given canned responses.
func NewMockFetcher(responses map[string]string) *MockFetcher {
	if responses == nil {
		responses = map[string]string{}
	}
	return &MockFetcher{Responses: responses}
}

func (m *MockFetcher) ExecuteDirect(ctx context.Context, url, prompt, source string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if resp, ok := m.Responses[url]; ok {
		return resp, nil
	}
	return `{"articles": []}`, nil
}

func (m *MockFetcher) ExecuteSearch(ctx context.Context, query, prompt, source string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if resp, ok := m.Responses[query]; ok {
		return resp, nil
	}
	return `{"articles": []}`, nil
}
