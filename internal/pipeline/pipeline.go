package pipeline

import (
	"context"
	"encoding/json"
	"log"

	"docqa/internal/direct"
	"docqa/internal/domain"
	"docqa/internal/evidence"
	"docqa/internal/generator"
	"docqa/internal/objects"
	"docqa/internal/prompt"
	"docqa/internal/retriever"
	"docqa/internal/router"
	"docqa/internal/vocab"
)

// Request is one question against the corpus plus the session object list.
// Hits, when non-nil, are pre-fetched candidates and suppress retrieval.
type Request struct {
	Question   string
	Objects    []domain.Object
	TopK       int
	Hits       []domain.RetrievedCandidate
	MaxRetries *int
	// EvidenceMode controls whether source listings carry excerpts.
	EvidenceMode bool
}

// Source is the caller-facing view of one unfiltered retrieval hit,
// independent of the filtered set the generator saw.
type Source struct {
	ChunkID  string      `json:"chunk_id"`
	Score    float64     `json:"score"`
	Filename string      `json:"filename"`
	Section  string      `json:"section,omitempty"`
	Page     *int        `json:"page,omitempty"`
	Kind     domain.Kind `json:"kind"`
	Excerpt  string      `json:"excerpt,omitempty"`
}

// Meta describes which backend produced the answer.
type Meta struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Format   string `json:"format"`
}

// Result is the terminal pipeline state: a well-formed answer payload plus
// the plan and the advisory diagnostics, always.
type Result struct {
	Answer        string               `json:"answer"`
	Evidence      []domain.Evidence    `json:"evidence"`
	ObjectSummary domain.ObjectSummary `json:"object_summary"`
	Checks        []domain.Check       `json:"object_checks"`
	Sources       []Source             `json:"sources"`
	Plan          domain.Plan          `json:"plan"`
	Meta          Meta                 `json:"meta"`
}

const sourceExcerptLen = 500

// Options tune pipeline behavior.
type Options struct {
	// MaxRetries bounds the generation retry loop. Defaults to 1.
	MaxRetries int
	// SkipRetrievalForObjectQuestions avoids irrelevant sources on pure
	// object-counting questions. Defaults to true via DefaultOptions.
	SkipRetrievalForObjectQuestions bool
	DefaultTopK                     int
}

func DefaultOptions() Options {
	return Options{MaxRetries: 1, SkipRetrievalForObjectQuestions: true, DefaultTopK: 2}
}

// Pipeline sequences Router -> ObjectVerify -> Direct -> Draft -> Validate
// with a bounded retry loop around generation+validation. It holds no
// per-request state and is safe to invoke re-entrantly.
type Pipeline struct {
	retriever *retriever.Retriever
	generator generator.Generator
	router    *router.Router
	verifier  *objects.Verifier
	resolver  *direct.Resolver
	builder   *prompt.Builder
	validator *evidence.Validator
	vocab     *vocab.Vocab
	opts      Options
}

// New assembles a pipeline. The retriever may be nil when candidates are
// always pre-fetched by the caller.
func New(rt *retriever.Retriever, gen generator.Generator, v *vocab.Vocab, opts Options) *Pipeline {
	if v == nil {
		v = vocab.Default()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 2
	}
	return &Pipeline{
		retriever: rt,
		generator: gen,
		router:    router.New(v),
		verifier:  objects.NewVerifier(v),
		resolver:  direct.New(v),
		builder:   prompt.NewBuilder(v),
		validator: evidence.NewValidator(v),
		vocab:     v,
		opts:      opts,
	}
}

// Answer runs the full pipeline for one request. It always returns a
// well-formed result; backend failures degrade to the fallback payload.
func (p *Pipeline) Answer(ctx context.Context, req Request) Result {
	question := req.Question
	summary := objects.Summarize(req.Objects)

	hits, backendFailed := p.fetch(ctx, req)
	sources := p.buildSources(hits, req.EvidenceMode)

	plan, filtered, shortCircuit := p.router.Route(question, hits)

	verifyHits := filtered
	if len(verifyHits) == 0 {
		verifyHits = hits
	}
	checks := p.verifier.Verify(question, summary, req.Objects, verifyHits)

	directPayload, usedHits, haveDirect := p.resolver.Resolve(question, plan, summary, verifyHits)
	if !haveDirect {
		usedHits = verifyHits
	}

	maxRetries := p.opts.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	var payload domain.AnswerPayload
	for retry := 0; ; retry++ {
		raw := p.draft(ctx, question, summary, usedHits, directPayload, haveDirect, shortCircuit || backendFailed)
		payload = p.validator.ValidateRaw(raw, usedHits, question)

		// No evidence and no direct strategy means no claim is allowed.
		if len(payload.Evidence) == 0 && !plan.Strategy.Direct() {
			payload = domain.Fallback()
		}
		if p.shouldRetry(plan, payload, shortCircuit || backendFailed, retry, maxRetries) {
			continue
		}
		break
	}

	return Result{
		Answer:        payload.Answer,
		Evidence:      payload.Evidence,
		ObjectSummary: summary,
		Checks:        checks,
		Sources:       sources,
		Plan:          plan,
		Meta:          p.meta(),
	}
}

// fetch returns the candidate set for the request: pre-fetched hits, a
// fresh retrieval, or nothing for pure object-count questions. A retrieval
// failure is reported so Draft can degrade without invoking the generator.
func (p *Pipeline) fetch(ctx context.Context, req Request) (hits []domain.RetrievedCandidate, backendFailed bool) {
	if req.Hits != nil {
		return req.Hits, false
	}
	if p.retriever == nil {
		return nil, false
	}
	if p.opts.SkipRetrievalForObjectQuestions && p.vocab.IsCount(req.Question) && p.vocab.IsObjectRelated(req.Question) {
		return nil, false
	}
	topK := req.TopK
	if topK <= 0 {
		topK = p.opts.DefaultTopK
	}
	if p.vocab.AskedPage(req.Question) != nil && topK < 5 {
		topK = 5
	}
	hits, err := p.retriever.Retrieve(ctx, req.Question, topK)
	if err != nil {
		log.Printf("retrieval failed, degrading to fallback: %v", err)
		return nil, true
	}
	return hits, false
}

// draft produces the raw payload text: the packaged direct answer, the
// fixed short-circuit payload, or the generator's output.
func (p *Pipeline) draft(ctx context.Context, question string, summary domain.ObjectSummary, usedHits []domain.RetrievedCandidate, directPayload domain.AnswerPayload, haveDirect, forceFallback bool) string {
	if haveDirect {
		raw, _ := json.Marshal(directPayload)
		return string(raw)
	}
	if forceFallback || p.generator == nil {
		raw, _ := json.Marshal(domain.Fallback())
		return string(raw)
	}
	promptText := p.builder.Build(question, summary, usedHits)
	raw, err := p.generator.Generate(ctx, promptText)
	if err != nil {
		log.Printf("generation failed, degrading to fallback: %v", err)
		fallback, _ := json.Marshal(domain.Fallback())
		return string(fallback)
	}
	return raw
}

// shouldRetry re-enters Draft only for non-direct, non-short-circuit
// strategies that produced no evidence, within the retry budget. Retrying
// never re-fetches candidates.
func (p *Pipeline) shouldRetry(plan domain.Plan, payload domain.AnswerPayload, shortCircuit bool, retry, maxRetries int) bool {
	if shortCircuit || plan.Strategy.Direct() {
		return false
	}
	if len(payload.Evidence) > 0 {
		return false
	}
	return retry < maxRetries
}

func (p *Pipeline) buildSources(hits []domain.RetrievedCandidate, evidenceMode bool) []Source {
	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		s := Source{
			ChunkID:  h.ID,
			Score:    h.Score,
			Filename: h.Metadata.Filename,
			Section:  h.Metadata.Section,
			Page:     h.Metadata.Page,
			Kind:     h.Metadata.Kind,
		}
		if evidenceMode {
			s.Excerpt = evidence.TruncateRunes(domain.NormalizeSpace(h.Text), sourceExcerptLen)
		}
		sources = append(sources, s)
	}
	return sources
}

func (p *Pipeline) meta() Meta {
	m := Meta{Provider: "none", Model: "none", Format: "quote_json"}
	if p.generator != nil {
		m.Provider = p.generator.Provider()
		m.Model = p.generator.Model()
	}
	return m
}
