package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	testSystem = "You classify businesses by NAICS code."
	testPrompt = "Select exactly 2 codes for: We migrate agencies to the cloud."
)

// scriptedChats hands out one chat per Create call, answering with the next scripted reply.
type scriptedChats struct {
	replies []scriptedReply
	created []*scriptedChat
}

type scriptedReply struct {
	resp *genai.GenerateContentResponse
	err  error
}

type scriptedChat struct {
	model  string
	config *genai.GenerateContentConfig
	reply  scriptedReply
	sent   []string
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		c.sent = append(c.sent, part.Text)
	}
	return c.reply.resp, c.reply.err
}

func (s *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	if len(s.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	chat := &scriptedChat{model: model, config: config, reply: s.replies[0]}
	s.replies = s.replies[1:]
	s.created = append(s.created, chat)
	return chat, nil
}

func textReply(candidates ...[]string) scriptedReply {
	resp := &genai.GenerateContentResponse{}
	for _, texts := range candidates {
		content := &genai.Content{}
		for _, text := range texts {
			content.Parts = append(content.Parts, &genai.Part{Text: text})
		}
		resp.Candidates = append(resp.Candidates, &genai.Candidate{Content: content})
	}
	return scriptedReply{resp: resp}
}

func errReply(code int, message string) scriptedReply {
	return scriptedReply{err: genai.APIError{Code: code, Message: message}}
}

func TestGenerateContent(t *testing.T) {
	selection := `{"selections": [{"code": "541512", "justification": "Cloud migration"}]}`

	cases := []struct {
		name       string
		replies    []scriptedReply
		maxRetries int
		want       string
		wantErr    bool
		wantChats  int
		wantWaits  []time.Duration
	}{
		{
			name:      "joins parts and candidates",
			replies:   []scriptedReply{textReply([]string{"```json", "  ", selection}, nil, []string{"```"})},
			want:      "```json\n" + selection + "\n```",
			wantChats: 1,
		},
		{
			name:       "server error then selection",
			replies:    []scriptedReply{errReply(http.StatusServiceUnavailable, "overloaded"), textReply([]string{selection})},
			maxRetries: 3,
			want:       selection,
			wantChats:  2,
			wantWaits:  []time.Duration{2 * time.Second},
		},
		{
			name: "short quota delay is honoured",
			replies: []scriptedReply{
				errReply(http.StatusTooManyRequests, "Quota exceeded. Please retry in 1.5s."),
				errReply(http.StatusInternalServerError, "internal"),
				textReply([]string{selection}),
			},
			maxRetries: 3,
			want:       selection,
			wantChats:  3,
			wantWaits:  []time.Duration{1500 * time.Millisecond, 4 * time.Second},
		},
		{
			name:       "retries exhausted",
			replies:    []scriptedReply{errReply(http.StatusBadGateway, ""), errReply(http.StatusBadGateway, "")},
			maxRetries: 2,
			wantErr:    true,
			wantChats:  2,
			wantWaits:  []time.Duration{2 * time.Second},
		},
		{
			name:       "long quota delay is not waited out",
			replies:    []scriptedReply{errReply(http.StatusTooManyRequests, "retry after 60 seconds")},
			maxRetries: 3,
			wantErr:    true,
			wantChats:  1,
		},
		{
			name:       "invalid argument is final",
			replies:    []scriptedReply{errReply(http.StatusBadRequest, "bad model")},
			maxRetries: 3,
			wantErr:    true,
			wantChats:  1,
		},
		{
			name:      "blank reply",
			replies:   []scriptedReply{textReply([]string{"  ", ""})},
			wantErr:   true,
			wantChats: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var waits []time.Duration
			original := sleep
			sleep = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}
			defer func() { sleep = original }()

			chats := &scriptedChats{replies: tc.replies}
			g := &Generator{chats: chats, model: defaultModel, maxRetries: tc.maxRetries, logger: zap.NewNop()}

			got, err := g.GenerateContent(context.Background(), "  "+testSystem+"\n", testPrompt)
			if tc.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("output = %q, want %q", got, tc.want)
			}
			if len(chats.created) != tc.wantChats {
				t.Fatalf("expected %d chats, got %d", tc.wantChats, len(chats.created))
			}
			if fmt.Sprint(waits) != fmt.Sprint(tc.wantWaits) {
				t.Fatalf("waits = %v, want %v", waits, tc.wantWaits)
			}

			for _, chat := range chats.created {
				if chat.model != defaultModel {
					t.Fatalf("unexpected model %q", chat.model)
				}
				instruction := chat.config.SystemInstruction
				if instruction == nil || instruction.Parts[0].Text != testSystem {
					t.Fatalf("expected the trimmed system instruction, got %+v", instruction)
				}
				if len(chat.sent) != 1 || chat.sent[0] != testPrompt {
					t.Fatalf("unexpected messages %q", chat.sent)
				}
			}
		})
	}
}

func TestGenerateContentStopsWhenContextIsDone(t *testing.T) {
	original := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	defer func() { sleep = original }()

	chats := &scriptedChats{replies: []scriptedReply{
		errReply(http.StatusInternalServerError, "internal"),
		textReply([]string{"never sent"}),
	}}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

	_, err := g.GenerateContent(context.Background(), "", testPrompt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(chats.created) != 1 {
		t.Fatalf("expected no attempt after cancellation, got %d chats", len(chats.created))
	}
	if chats.created[0].config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for an empty system prompt")
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGenerator(context.Background(), Config{APIKey: "  "}, nil); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		attempt   int
		wantRetry bool
		wantDelay time.Duration
	}{
		{name: "server error backs off", err: genai.APIError{Code: http.StatusServiceUnavailable}, attempt: 2, wantRetry: true, wantDelay: 4 * time.Second},
		{name: "short quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 1.5s."}, attempt: 1, wantRetry: true, wantDelay: 1500 * time.Millisecond},
		{name: "quota without hint", err: genai.APIError{Code: http.StatusTooManyRequests}, attempt: 1, wantRetry: true, wantDelay: 2 * time.Second},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest}, attempt: 1},
		{name: "wrapped server error", err: fmt.Errorf("wrap: %w", genai.APIError{Code: http.StatusBadGateway}), attempt: 1, wantRetry: true, wantDelay: 2 * time.Second},
		{name: "plain error", err: errors.New("boom"), attempt: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			delay, retry := retryDelay(tc.err, tc.attempt)
			if retry != tc.wantRetry {
				t.Fatalf("retry = %v, want %v", retry, tc.wantRetry)
			}
			if retry && delay != tc.wantDelay {
				t.Fatalf("delay = %v, want %v", delay, tc.wantDelay)
			}
		})
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	t.Parallel()

	g := &Generator{chats: &scriptedChats{}, model: defaultModel, maxRetries: 1, logger: zap.NewNop()}
	if _, err := g.GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
