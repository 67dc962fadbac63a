package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/lookaround/internal/browser"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Assessment
		wantErr  string
	}{
		{
			name:     "bare object",
			response: `{"rating": 4, "reason": "close match"}`,
			want:     Assessment{Rating: 4, Reason: "close match"},
		},
		{
			name:     "embedded in prose",
			response: "Sure! Here is my verdict:\n{\"rating\": 2, \"reason\": \"only an index page\"}\nHope that helps.",
			want:     Assessment{Rating: 2, Reason: "only an index page"},
		},
		{
			name:     "markdown fence",
			response: "```json\n{\"rating\": 5, \"reason\": \"exact\"}\n```",
			want:     Assessment{Rating: 5, Reason: "exact"},
		},
		{
			name:     "braces inside the reason",
			response: `Verdict: {"rating": 3, "reason": "mentions {remote} but \"hybrid}\" too"} done`,
			want:     Assessment{Rating: 3, Reason: `mentions {remote} but "hybrid}" too`},
		},
		{name: "no object", response: "I cannot rate this page.", wantErr: "no JSON object"},
		{name: "unbalanced", response: `{"rating": 3, "reason": "x"`, wantErr: "no matching closing brace"},
		{name: "rating out of range", response: `{"rating": 9, "reason": "x"}`, wantErr: "outside 1-5"},
		{name: "missing rating", response: `{"reason": "x"}`, wantErr: "outside 1-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssessment(tt.response)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

const jobPage = `<html><head><title> Backend Engineer </title><style>body{color:red}</style></head>
<body>
<nav>Home   Jobs</nav>
<script>var tracking = 1;</script>
<div hidden>secret</div>
<h1>Backend   Engineer</h1>
<p>Go, Postgres,
and Kafka.</p>
</body></html>`

func TestDigest(t *testing.T) {
	page, err := Digest(jobPage, 0)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", page.Title)
	assert.Equal(t, "Home Jobs Backend Engineer Go, Postgres, and Kafka.", page.Text)
	assert.False(t, page.Truncated)

	page, err = Digest(jobPage, 9)
	require.NoError(t, err)
	assert.Equal(t, "Home Jobs", page.Text)
	assert.True(t, page.Truncated)
}

func TestBuildUserPrompt(t *testing.T) {
	p := buildUserPrompt(Page{URL: "https://x/1", Title: "T", Text: "body", Truncated: true}, "remote Go jobs")
	assert.Contains(t, p, "URL: https://x/1\n")
	assert.Contains(t, p, "body\n[truncated]")
	assert.True(t, strings.HasSuffix(p, "Criteria: remote Go jobs"))
}

type fakeProvider struct {
	pages []Page
	reply *Assessment
	err   error
}

func (f *fakeProvider) Assess(_ context.Context, page Page, criteria string) (*Assessment, error) {
	f.pages = append(f.pages, page)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func TestAssessHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jobPage)
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := browser.Open(ctx, browser.Static, browser.Options{HTTPClient: srv.Client()})
	require.NoError(t, err)
	defer s.Quit()
	require.NoError(t, s.Navigate(ctx, srv.URL+"/jobs/7"))

	core, logs := observer.New(zap.InfoLevel)
	prov := &fakeProvider{reply: &Assessment{Rating: 4, Reason: "Go backend role"}}
	h := &AssessHandler{Provider: prov, Criteria: "Go jobs", MaxChars: 20, Logger: zap.New(core)}

	require.NoError(t, h.Handle(ctx, s))
	require.Len(t, prov.pages, 1)
	assert.Equal(t, srv.URL+"/jobs/7", prov.pages[0].URL)
	assert.Equal(t, "Backend Engineer", prov.pages[0].Title)
	assert.True(t, prov.pages[0].Truncated)

	assert.Equal(t, []Result{{URL: srv.URL + "/jobs/7", Assessment: Assessment{Rating: 4, Reason: "Go backend role"}}}, h.Results())
	entries := logs.FilterMessage("page assessed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4), entries[0].ContextMap()["rating"])

	prov.err = errors.New("rate limited")
	assert.ErrorContains(t, h.Handle(ctx, s), "rate limited")
	assert.Len(t, h.Results(), 1)

	assert.Error(t, (&AssessHandler{}).Handle(ctx, s))
}

func TestNewProvider(t *testing.T) {
	t.Setenv("LOOKAROUND_ANTHROPIC_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOOKAROUND_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("claude", "")
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
	_, err = NewProvider("gpt", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
	_, err = NewProvider("llama", "")
	assert.ErrorContains(t, err, "unknown provider: llama")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	p, err := NewProvider("anthropic", "")
	require.NoError(t, err)
	assert.IsType(t, &ClaudeProvider{}, p)

	t.Setenv("LOOKAROUND_OPENAI_KEY", "sk-test")
	p, err = NewProvider("openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.(*OpenAIProvider).model)
}

func TestOpenAIProviderAssess(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant",
			"content":"Rating below.\n{\"rating\": 3, \"reason\": \"partly relevant\"}"}}]}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	p := NewOpenAIProviderWithConfig(cfg, "")

	a, err := p.Assess(context.Background(), Page{URL: "https://x/1", Title: "T", Text: "hello"}, "greetings")
	require.NoError(t, err)
	assert.Equal(t, &Assessment{Rating: 3, Reason: "partly relevant"}, a)

	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "Criteria: greetings")
}

func TestClaudeProviderAssess(t *testing.T) {
	t.Setenv("LOOKAROUND_ANTHROPIC_KEY", "sk-test")
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"{\"rating\": 5, \"reason\": \"exact match\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)
	}))
	defer srv.Close()

	p, err := NewClaudeProvider("", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	a, err := p.Assess(context.Background(), Page{Title: "T"}, "anything")
	require.NoError(t, err)
	assert.Equal(t, &Assessment{Rating: 5, Reason: "exact match"}, a)
	assert.Equal(t, "/v1/messages", path)
}
