package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/entropy1208/halsaveda-copilot/internal/index"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeIndex struct {
	matches []index.Match
	err     error
	gotTopK int
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]index.Match, error) {
	f.gotTopK = topK
	return f.matches, f.err
}

type fakeGenerator struct {
	completion string
	err        error
	calls      int
	gotSystem  string
	gotPrompt  string
}

func (f *fakeGenerator) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.gotSystem = system
	f.gotPrompt = prompt
	return f.completion, f.err
}

func testMatches() []index.Match {
	return []index.Match{
		{Content: "Vila och drick mycket vätska.", Title: "Förkylning", URL: "https://1177.se/forkylning", Score: 0.87},
		{Content: "Feber hos vuxna.", Title: "Feber", URL: "https://1177.se/feber", Score: 0.54},
	}
}

func newTestService(t *testing.T, e Embedder, i Index, g Generator) *Service {
	t.Helper()

	svc, err := New(e, i, g, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestAnswer_HappyPath(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	idx := &fakeIndex{matches: testMatches()}
	gen := &fakeGenerator{completion: "Rest and drink fluids. [Source 1]"}
	svc := newTestService(t, embedder, idx, gen)

	result, err := svc.Answer(context.Background(), "What should I do for a cold?", 3)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if result.Answer != "Rest and drink fluids. [Source 1]" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(result.Sources))
	}
	if result.Sources[0].Title != "Förkylning" || result.Sources[0].Score != 0.87 {
		t.Errorf("first source = %+v", result.Sources[0])
	}
	if result.Sources[1].URL != "https://1177.se/feber" {
		t.Errorf("second source URL = %q", result.Sources[1].URL)
	}
	if idx.gotTopK != 3 {
		t.Errorf("topK passed to index = %d, want 3", idx.gotTopK)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{vector: []float32{0.1}}
	svc := newTestService(t, embedder, &fakeIndex{}, &fakeGenerator{completion: "x"})

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Answer(context.Background(), q, 3); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Answer(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty questions, want 0", embedder.calls)
	}
}

func TestAnswer_TopKDefaultsWhenNonPositive(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{matches: testMatches()}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{0.1}}, idx, &fakeGenerator{completion: "ok"})

	for _, topK := range []int{0, -1} {
		if _, err := svc.Answer(context.Background(), "fråga", topK); err != nil {
			t.Fatalf("Answer(topK=%d): %v", topK, err)
		}
		if idx.gotTopK != DefaultTopK {
			t.Errorf("topK=%d passed to index as %d, want %d", topK, idx.gotTopK, DefaultTopK)
		}
	}
}

func TestAnswer_EmptyRetrievalSkipsGeneration(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{completion: "should never be used"}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{0.1}}, &fakeIndex{matches: nil}, gen)

	result, err := svc.Answer(context.Background(), "something obscure", 3)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if result.Answer != NoSourcesAnswer {
		t.Errorf("answer = %q, want NoSourcesAnswer", result.Answer)
	}
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Errorf("sources = %#v, want empty non-nil slice", result.Sources)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times on empty retrieval, want 0", gen.calls)
	}
}

func TestAnswer_StageErrors(t *testing.T) {
	t.Parallel()

	upstream := errors.New("boom")

	tests := []struct {
		name    string
		embed   *fakeEmbedder
		idx     *fakeIndex
		gen     *fakeGenerator
		wantErr error
	}{
		{
			name:    "embedding error",
			embed:   &fakeEmbedder{err: upstream},
			idx:     &fakeIndex{},
			gen:     &fakeGenerator{},
			wantErr: ErrEmbedding,
		},
		{
			name:    "empty embedding vector",
			embed:   &fakeEmbedder{vector: nil},
			idx:     &fakeIndex{},
			gen:     &fakeGenerator{},
			wantErr: ErrEmbedding,
		},
		{
			name:    "retrieval error",
			embed:   &fakeEmbedder{vector: []float32{0.1}},
			idx:     &fakeIndex{err: upstream},
			gen:     &fakeGenerator{},
			wantErr: ErrRetrieval,
		},
		{
			name:    "generation error",
			embed:   &fakeEmbedder{vector: []float32{0.1}},
			idx:     &fakeIndex{matches: testMatches()},
			gen:     &fakeGenerator{err: upstream},
			wantErr: ErrGeneration,
		},
		{
			name:    "empty completion",
			embed:   &fakeEmbedder{vector: []float32{0.1}},
			idx:     &fakeIndex{matches: testMatches()},
			gen:     &fakeGenerator{completion: "  "},
			wantErr: ErrGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestService(t, tt.embed, tt.idx, tt.gen)

			_, err := svc.Answer(context.Background(), "fråga", 3)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Answer error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnswer_ClampsScores(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{matches: []index.Match{
		{Title: "Over", Score: 1.0000002},
		{Title: "Under", Score: -0.01},
	}}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{0.1}}, idx, &fakeGenerator{completion: "ok"})

	result, err := svc.Answer(context.Background(), "fråga", 3)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Sources[0].Score != 1 {
		t.Errorf("score above 1 not clamped: %v", result.Sources[0].Score)
	}
	if result.Sources[1].Score != 0 {
		t.Errorf("score below 0 not clamped: %v", result.Sources[1].Score)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	e := &fakeEmbedder{}
	i := &fakeIndex{}
	g := &fakeGenerator{}
	logger := log.NewNop()

	tests := []struct {
		name string
		err  error
	}{
		{"nil embedder", func() error { _, err := New(nil, i, g, logger); return err }()},
		{"nil index", func() error { _, err := New(e, nil, g, logger); return err }()},
		{"nil generator", func() error { _, err := New(e, i, nil, logger); return err }()},
		{"nil logger", func() error { _, err := New(e, i, g, nil); return err }()},
	}

	for _, tt := range tests {
		if tt.err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt("What should I do for a cold?", testMatches())

	for _, want := range []string{
		"[Source 1]: Förkylning",
		"Vila och drick mycket vätska.",
		"URL: https://1177.se/forkylning",
		"[Source 2]: Feber",
		"Question: What should I do for a cold?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n\nprompt:\n%s", want, prompt)
		}
	}

	if !strings.HasSuffix(prompt, "Answer:") {
		t.Errorf("prompt should end with the answer cue, got tail %q", prompt[len(prompt)-20:])
	}
}

func TestBuildPrompt_SkipsEmptyURL(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt("q", []index.Match{{Title: "NoLink", Content: "text"}})

	if strings.Contains(prompt, "URL:") {
		t.Error("prompt should not contain a URL line for a chunk without one")
	}
}

func TestAnswer_PromptReachesGenerator(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{completion: "ok"}
	svc := newTestService(t, &fakeEmbedder{vector: []float32{0.1}}, &fakeIndex{matches: testMatches()}, gen)

	if _, err := svc.Answer(context.Background(), "Vad gör jag vid feber?", 2); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if !strings.Contains(gen.gotSystem, "HälsaVeda Copilot") {
		t.Errorf("system prompt missing persona: %q", gen.gotSystem)
	}
	if !strings.Contains(gen.gotPrompt, "Vad gör jag vid feber?") {
		t.Errorf("user prompt missing question: %q", gen.gotPrompt)
	}
}
