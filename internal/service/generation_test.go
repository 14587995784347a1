package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/eventbus"
	"github.com/kaizen-comms/backend/internal/pkg/deck"
	"github.com/kaizen-comms/backend/internal/pkg/docfill"
	"github.com/kaizen-comms/backend/internal/pkg/docx"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator 记录调用次数，可选地阻塞直到 release 关闭
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []llm.Prompt
	reply   string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Text:  f.reply,
		Model: "fake-model",
		Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testDeck 构造只有幻灯片部件的 pptx，每个参数为一页的形状文本
func testDeck(t *testing.T, slides ...[]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for i, shapes := range slides {
		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
			`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>`)
		for _, s := range shapes {
			fmt.Fprintf(&sb, `<p:sp><p:txBody><a:bodyPr/><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp>`, s)
		}
		sb.WriteString(`</p:spTree></p:cSld></p:sld>`)
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i+1))
		require.NoError(t, err)
		_, err = w.Write([]byte(sb.String()))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testGenerationConfig() config.GenerationConfig {
	return config.Default().Generation
}

type eventLog struct {
	mu     sync.Mutex
	events []eventbus.GenerationEvent
}

func (l *eventLog) handle(_ context.Context, e eventbus.GenerationEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []eventbus.GenerationEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []eventbus.GenerationEventType
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T, cfg config.GenerationConfig, gen llm.Generator) (*GenerationService, *eventLog) {
	t.Helper()
	catalog, err := domain.DefaultCatalog()
	require.NoError(t, err)
	bus := eventbus.NewGenerationEventBus()
	log := &eventLog{}
	bus.Subscribe(eventbus.GenerationEventStarted, log.handle)
	bus.Subscribe(eventbus.GenerationEventCompleted, log.handle)
	bus.Subscribe(eventbus.GenerationEventFailed, log.handle)
	svc, err := NewGenerationService(cfg, catalog, gen, bus)
	require.NoError(t, err)
	return svc, log
}

func kaizenDeck(t *testing.T) []byte {
	return testDeck(t,
		[]string{"Intake Kaizen", "Root cause: late handoffs"},
		[]string{"Proposed fix: single queue"},
	)
}

func TestGenerateTemplateDocument(t *testing.T) {
	gen := &fakeGenerator{reply: `{"overview":"X","challenges":["Handoff delays"],"improvements":[],"benefits":[],"plan":[],"summary":"Y"}`}
	svc, log := newTestService(t, testGenerationConfig(), gen)

	result, err := svc.Generate(context.Background(), GenerateRequest{
		DeckName:    "intake.pptx",
		Deck:        kaizenDeck(t),
		DocumentKey: "kaizen-communication-summary",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, "Kaizen Communication Summary.docx", result.Document.FileName)
	assert.Equal(t, docx.MimeType, result.Document.MimeType)
	assert.Equal(t, "fake-model", result.Model)
	assert.Equal(t, 150, result.Usage.TotalTokens)
	assert.Equal(t, 2, result.Extraction.SlideCount)
	assert.False(t, result.Extraction.Truncated)
	assert.Contains(t, result.PreviewHTML, "<li>Handoff delays</li>")
	require.Len(t, result.Sections, 6)

	doc, err := docx.Open(result.Document.Data)
	require.NoError(t, err)
	text := doc.Text()
	assert.NotContains(t, text, "{{")
	assert.Contains(t, text, "Handoff delays")
	var bullets []string
	for _, p := range doc.Paragraphs() {
		if p.Style() == "ListBullet" {
			bullets = append(bullets, p.Text())
		}
	}
	// challenges 一项，其余三个列表字段各一个 TBD
	assert.Equal(t, []string{"Handoff delays", "TBD", "TBD", "TBD"}, bullets)

	require.Equal(t, 1, gen.callCount())
	assert.Contains(t, gen.prompts[0].User, "Slide 1:\nIntake Kaizen\nRoot cause: late handoffs\n\nSlide 2:\nProposed fix: single queue")
	assert.Contains(t, gen.prompts[0].User, "Return ONLY a single JSON object")

	assert.Equal(t, []eventbus.GenerationEventType{eventbus.GenerationEventStarted, eventbus.GenerationEventCompleted}, log.types())
	completed := log.events[1]
	assert.Equal(t, result.RequestID, completed.RequestID)
	assert.Equal(t, "intake.pptx", completed.DeckName)
	assert.Equal(t, "json", completed.ResponseFormat)
	assert.Equal(t, "token", completed.AnchorStrategy)
	assert.Equal(t, 150, completed.TotalTokens)
}

func TestGenerateTextDocument(t *testing.T) {
	gen := &fakeGenerator{reply: "## Problem\n\nLate handoffs — “three days”\n\n- Metric: TBD"}
	svc, _ := newTestService(t, testGenerationConfig(), gen)

	result, err := svc.Generate(context.Background(), GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "30/60/90 Day Follow-Up"})
	require.NoError(t, err)
	assert.Equal(t, "30-60-90 Day Follow-Up.docx", result.Document.FileName)
	assert.Empty(t, result.Sections)
	assert.Contains(t, result.PreviewHTML, "<h2>Problem</h2>")

	assert.Equal(t, []styledText{
		{"Heading1", "30/60/90 Day Follow-Up"},
		{"Heading3", "Problem"},
		{"", `Late handoffs - "three days"`},
		{"ListBullet", "Metric: TBD"},
	}, documentParagraphs(t, result.Document.Data))
	assert.NotContains(t, gen.prompts[0].User, "JSON")
}

func TestGenerateTaggedFormatAndHeadingStrategy(t *testing.T) {
	cfg := testGenerationConfig()
	cfg.ResponseFormat = "tagged"
	cfg.AnchorStrategy = "heading"
	gen := &fakeGenerator{reply: "[OVERVIEW]X[/OVERVIEW]\n[CHALLENGES]\n- Handoff delays\n[/CHALLENGES]"}
	svc, _ := newTestService(t, cfg, gen)

	result, err := svc.Generate(context.Background(), GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "kaizen-communication-summary"})
	require.NoError(t, err)

	doc, err := docx.Open(result.Document.Data)
	require.NoError(t, err)
	text := doc.Text()
	assert.NotContains(t, text, "{{")
	assert.Contains(t, text, "Overview\nX\nKey Challenges Identified\nHandoff delays")
	assert.Contains(t, gen.prompts[0].User, "[/SUMMARY]")
}

func TestGenerateTruncatesDeckText(t *testing.T) {
	cfg := testGenerationConfig()
	gen := &fakeGenerator{reply: "Summary"}
	svc, _ := newTestService(t, cfg, gen)

	long := strings.Repeat("x", 7000)
	result, err := svc.Generate(context.Background(), GenerateRequest{
		Deck:        testDeck(t, []string{long}),
		DocumentKey: "executive-summary",
		MaxChars:    5000,
	})
	require.NoError(t, err)
	assert.True(t, result.Extraction.Truncated)
	assert.Equal(t, 5000+len(TruncationMarker), result.Extraction.SentChars)
	assert.True(t, strings.HasSuffix(gen.prompts[0].User, TruncationMarker))
}

func TestGenerateRejectsBeforeCallingModel(t *testing.T) {
	missingToken, err := docx.NewBuilder().
		Paragraph("{{OVERVIEW}}", "").
		Paragraph("{{CHALLENGES}}", "").
		Bytes()
	require.NoError(t, err)

	tests := []struct {
		name string
		req  GenerateRequest
		want error
	}{
		{"unknown document", GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "press-release"}, ErrInvalidRequest},
		{"budget out of range", GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "executive-summary", MaxChars: 100}, ErrInvalidRequest},
		{"not a deck", GenerateRequest{Deck: []byte("plain text"), DocumentKey: "executive-summary"}, deck.ErrInvalidDeck},
		{"empty deck", GenerateRequest{Deck: testDeck(t, []string{" "}), DocumentKey: "executive-summary"}, ErrEmptyDeck},
		{"template missing tokens", GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "kaizen-communication-summary", Template: missingToken}, docfill.ErrMissingAnchors},
		{"template not a docx", GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "kaizen-communication-summary", Template: []byte("nope")}, docx.ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: "{}"}
			svc, log := newTestService(t, testGenerationConfig(), gen)
			_, err := svc.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, gen.callCount())
			assert.Empty(t, log.types())
		})
	}
}

func TestGenerateMissingTokensNamesThem(t *testing.T) {
	template, err := docx.NewBuilder().Paragraph("{{OVERVIEW}}", "").Bytes()
	require.NoError(t, err)
	svc, _ := newTestService(t, testGenerationConfig(), &fakeGenerator{})

	_, err = svc.Generate(context.Background(), GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "kaizen-communication-summary", Template: template})
	var missing *docfill.MissingAnchorsError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Missing, "{{CHALLENGES}}")
	assert.NotContains(t, missing.Missing, "{{OVERVIEW}}")
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
		kind string
	}{
		{"malformed output", &fakeGenerator{reply: "Sorry, I cannot help with that."}, ErrMalformedResponse, "malformed_response"},
		{"rate limited", &fakeGenerator{err: &llm.Error{Kind: llm.ErrRateLimited, StatusCode: 429, Provider: "fake", Err: errors.New("quota")}}, llm.ErrRateLimited, "rate_limited"},
		{"authentication", &fakeGenerator{err: &llm.Error{Kind: llm.ErrAuthentication, StatusCode: 401, Provider: "fake", Err: errors.New("bad key")}}, llm.ErrAuthentication, "authentication"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, log := newTestService(t, testGenerationConfig(), tt.gen)
			_, err := svc.Generate(context.Background(), GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "kaizen-communication-summary"})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, tt.gen.callCount(), "no retries")

			require.Equal(t, []eventbus.GenerationEventType{eventbus.GenerationEventStarted, eventbus.GenerationEventFailed}, log.types())
			assert.Equal(t, tt.kind, log.events[1].ErrorKind)
			assert.NotEmpty(t, log.events[1].ErrorMsg)
		})
	}
}

func TestGenerateOneAtATime(t *testing.T) {
	gen := &fakeGenerator{reply: "Summary", entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newTestService(t, testGenerationConfig(), gen)
	req := GenerateRequest{Deck: kaizenDeck(t), DocumentKey: "executive-summary"}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), req)
		done <- err
	}()
	<-gen.entered

	_, err := svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gen.callCount())

	// 前一个任务结束后可以再次生成
	gen.entered, gen.release = nil, nil
	_, err = svc.Generate(context.Background(), req)
	assert.NoError(t, err)
}

func TestExtract(t *testing.T) {
	cfg := testGenerationConfig()
	cfg.PreviewChars = 10
	svc, _ := newTestService(t, cfg, &fakeGenerator{})

	result, err := svc.Extract(context.Background(), kaizenDeck(t), 0)
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultMaxChars, result.MaxChars)
	assert.Equal(t, "Slide 1:\nI", result.Preview)
	assert.Equal(t, result.TotalChars, result.SentChars)
	assert.Equal(t, 2, result.SlideCount)
}

func TestDefaultTemplate(t *testing.T) {
	svc, _ := newTestService(t, testGenerationConfig(), &fakeGenerator{})
	data, err := svc.DefaultTemplate()
	require.NoError(t, err)

	doc, err := docx.Open(data)
	require.NoError(t, err)
	for _, token := range domain.KaizenSchema().Tokens() {
		assert.Contains(t, doc.Text(), token)
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "connection", ErrorKind(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, "authentication", ErrorKind(config.ErrMissingAPIKey))
	assert.Equal(t, "busy", ErrorKind(ErrBusy))
	assert.Equal(t, "unexpected", ErrorKind(errors.New("boom")))
}
