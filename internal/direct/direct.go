package direct

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/evidence"
	"docqa/internal/vocab"
)

// Span cuts are in characters, like the evidence caps.
const (
	anchorSpanCap  = 240
	minAnchorLen   = 20
	excerptHeadLen = 200
)

// Resolver computes deterministic answers for direct_* strategies without
// invoking the generator. For strategies it does not own it returns ok=false
// and the pipeline falls through to generation.
type Resolver struct {
	vocab *vocab.Vocab
}

func New(v *vocab.Vocab) *Resolver {
	if v == nil {
		v = vocab.Default()
	}
	return &Resolver{vocab: v}
}

// Resolve executes the plan's strategy. usedHits is the candidate set the
// evidence validator must treat as the source universe for this answer; for
// doc-span answers it is exactly the one cited candidate.
func (r *Resolver) Resolve(question string, plan domain.Plan, summary domain.ObjectSummary, candidates []domain.RetrievedCandidate) (payload domain.AnswerPayload, usedHits []domain.RetrievedCandidate, ok bool) {
	switch plan.Strategy {
	case domain.StrategyObjectCount:
		return countPayload(summary.TotalObjects), candidates, true
	case domain.StrategyObjectLayerCount:
		target := r.layerTarget(question, plan)
		return countPayload(lookupCount(summary.ByLayer, target)), candidates, true
	case domain.StrategyObjectTypeCount:
		target := r.typeTarget(question, plan)
		return countPayload(lookupCount(summary.ByType, target)), candidates, true
	case domain.StrategyDocSpan:
		return r.resolveDocSpan(plan, candidates)
	default:
		return domain.AnswerPayload{}, nil, false
	}
}

func countPayload(n int) domain.AnswerPayload {
	return domain.AnswerPayload{Answer: strconv.Itoa(n), Evidence: []domain.Evidence{}}
}

func (r *Resolver) layerTarget(question string, plan domain.Plan) string {
	if plan.LayerTarget != nil && strings.TrimSpace(*plan.LayerTarget) != "" {
		return strings.TrimSpace(*plan.LayerTarget)
	}
	if hint := r.vocab.LayerHint(question); hint != nil {
		return *hint
	}
	return ""
}

func (r *Resolver) typeTarget(question string, plan domain.Plan) string {
	if plan.TypeTarget != nil && strings.TrimSpace(*plan.TypeTarget) != "" {
		return strings.TrimSpace(*plan.TypeTarget)
	}
	if hint := r.vocab.TypeHint(question); hint != nil {
		return *hint
	}
	return ""
}

func lookupCount(counts map[string]int, target string) int {
	if target == "" {
		return 0
	}
	for k, v := range counts {
		if strings.EqualFold(k, target) {
			return v
		}
	}
	return 0
}

// resolveDocSpan extracts a clean restriction/definition sentence from the
// best text candidate, preferring the asked page. Without a text candidate
// it produces nothing and the pipeline falls through to generation.
func (r *Resolver) resolveDocSpan(plan domain.Plan, candidates []domain.RetrievedCandidate) (domain.AnswerPayload, []domain.RetrievedCandidate, bool) {
	best, found := bestTextHit(candidates, plan.AskedPage)
	if !found {
		return domain.AnswerPayload{}, nil, false
	}
	excerpt := domain.NormalizeSpace(best.Text)

	answer := ""
	quote := ""
	if sent := r.anchoredSentence(excerpt); sent != "" {
		answer = sent
		quote = evidence.TruncateRunes(sent, evidence.MaxQuoteLen)
	} else {
		exLow := strings.ToLower(excerpt)
		if phrase := r.matchedMeasurePhrase(exLow); phrase != "" {
			answer = r.vocab.MeasureAnswer()
		} else if excerpt != "" {
			answer = strings.TrimRight(evidence.TruncateRunes(excerpt, excerptHeadLen), " ") + "."
		} else {
			answer = domain.FallbackAnswer
		}
		quote = evidence.TruncateRunes(excerpt, evidence.MaxQuoteLen)
	}

	payload := domain.AnswerPayload{
		Answer: answer,
		Evidence: []domain.Evidence{{
			SourceID: 1,
			ChunkID:  best.ID,
			Quote:    quote,
		}},
	}
	// Evidence numbering: this single candidate is source 1.
	return payload, []domain.RetrievedCandidate{best}, true
}

// anchoredSentence pulls the sentence starting at the first configured
// anchor phrase, cut at the first period or the span cap.
func (r *Resolver) anchoredSentence(excerpt string) string {
	if excerpt == "" {
		return ""
	}
	low := strings.ToLower(excerpt)
	for _, anchor := range r.vocab.SpanAnchors() {
		idx := strings.Index(low, strings.ToLower(anchor))
		if idx == -1 {
			continue
		}
		tail := excerpt[idx:]
		var sent string
		if dot := strings.Index(tail, "."); dot != -1 {
			sent = tail[:dot+1]
		} else {
			sent = evidence.TruncateRunes(tail, anchorSpanCap)
		}
		sent = domain.NormalizeSpace(sent)
		if utf8.RuneCountInString(sent) >= minAnchorLen {
			return sent
		}
	}
	return ""
}

func (r *Resolver) matchedMeasurePhrase(excerptLower string) string {
	for _, phrase := range r.vocab.MeasurePhrases() {
		if strings.Contains(excerptLower, strings.ToLower(phrase)) {
			return phrase
		}
	}
	return ""
}

// bestTextHit prefers a text-kind candidate on the asked page, then the
// first text-kind candidate in order.
func bestTextHit(candidates []domain.RetrievedCandidate, askedPage *int) (domain.RetrievedCandidate, bool) {
	if askedPage != nil {
		for _, c := range candidates {
			if c.Metadata.Kind == domain.KindText && c.Metadata.Page != nil && *c.Metadata.Page == *askedPage {
				return c, true
			}
		}
	}
	for _, c := range candidates {
		if c.Metadata.Kind == domain.KindText {
			return c, true
		}
	}
	return domain.RetrievedCandidate{}, false
}
