package anthropic

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func textMessage(parts ...string) *anthropic.Message {
	blocks := make([]anthropic.ContentBlockUnion, 0, len(parts))
	for _, p := range parts {
		blocks = append(blocks, anthropic.ContentBlockUnion{Type: "text", Text: p})
	}
	return &anthropic.Message{Content: blocks}
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	mock := &mockMessager{response: textMessage(`{"selections":`, `[]}`)}
	g := &Generator{messages: mock, model: "claude-test", maxTokens: 100}

	out, err := g.GenerateContent(context.Background(), "be precise", "pick codes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"selections":[]}` {
		t.Fatalf("unexpected output %q", out)
	}
	if len(mock.params.System) != 1 || mock.params.System[0].Text != "be precise" {
		t.Fatalf("expected system prompt, got %+v", mock.params.System)
	}
	if string(mock.params.Model) != "claude-test" || mock.params.MaxTokens != 100 {
		t.Fatalf("unexpected params %+v", mock.params)
	}
}

func TestGenerateContentErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mock   *mockMessager
		prompt string
	}{
		{name: "empty prompt", mock: &mockMessager{}, prompt: " "},
		{name: "transport", mock: &mockMessager{err: errors.New("status 529")}, prompt: "x"},
		{name: "no text blocks", mock: &mockMessager{response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{}}}, prompt: "x"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := &Generator{messages: tc.mock, model: "m", maxTokens: 1}
			if _, err := g.GenerateContent(context.Background(), "", tc.prompt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	mock := &mockMessager{}
	old := newMessager
	newMessager = func(string) messager { return mock }
	defer func() { newMessager = old }()

	if _, err := NewGenerator(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}

	g, err := NewGenerator(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model() != defaultModel || g.maxTokens != defaultMaxTokens || g.messages != mock {
		t.Fatalf("unexpected defaults %+v", g)
	}
}
