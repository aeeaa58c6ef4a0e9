package retriever

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/index"
	"docqa/internal/vocab"
)

const (
	keywordBoostCap  = 0.18
	keywordBoostStep = 0.03
	lexicalWeight    = 0.25
	sectionBoost     = 0.15
	sectionPenalty   = 0.15
)

// Options tune the reranking passes. Zero value enables everything.
type Options struct {
	DisableKeywordRerank bool
	DisableLexicalBonus  bool
	// SectionLabels are the corpus' explicit class/section labels, used to
	// infer a section from the query and to penalize off-section excerpts.
	SectionLabels []string
}

// Retriever issues filtered vector queries and reorders the merged results
// with lexical and keyword signals. Candidate scores are mutable only
// inside Retrieve.
type Retriever struct {
	index    index.Index
	embedder embedding.Embedder
	vocab    *vocab.Vocab
	opts     Options
}

func New(idx index.Index, emb embedding.Embedder, v *vocab.Vocab, opts Options) *Retriever {
	if v == nil {
		v = vocab.Default()
	}
	return &Retriever{index: idx, embedder: emb, vocab: v, opts: opts}
}

// Retrieve returns the topK candidates for the query, biased toward the
// asked page, visual kind and inferred section.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedCandidate, error) {
	if topK <= 0 {
		topK = 5
	}
	vec, err := r.embedder.Embed(query)
	if err != nil {
		return nil, err
	}

	page := r.vocab.AskedPage(query)
	if page != nil {
		return r.retrievePage(ctx, query, vec, *page, topK)
	}
	return r.retrieveFlat(ctx, query, vec, topK)
}

// retrievePage handles queries naming an explicit page: up to two filtered
// queries, a caption fallback, then a diversity-first merge.
func (r *Retriever) retrievePage(ctx context.Context, query string, vec []float64, page, topK int) ([]domain.RetrievedCandidate, error) {
	rawK := topK * 6
	if rawK < 18 {
		rawK = 18
	}
	visual := r.vocab.IsVisual(query)

	var captions []domain.RetrievedCandidate
	if visual {
		var err error
		captions, err = r.index.Search(ctx, vec, index.Filter{Page: &page, Kind: domain.KindCaption}, rawK)
		if err != nil {
			return nil, err
		}
	}
	texts, err := r.index.Search(ctx, vec, index.Filter{Page: &page, Kind: domain.KindText}, rawK)
	if err != nil {
		return nil, err
	}

	if visual && len(captions) == 0 {
		// No caption on that page: same-page unfiltered query, top results
		// directly, no diversity merge.
		hits, err := r.index.Search(ctx, vec, index.Filter{Page: &page}, rawK)
		if err != nil {
			return nil, err
		}
		r.rerank(query, hits)
		sortByScore(hits)
		return truncate(dedupe(hits), topK), nil
	}

	r.rerank(query, captions)
	r.rerank(query, texts)
	sortByScore(captions)
	sortByScore(texts)

	// Diversity first: one top caption, one top text, then fill from the
	// combined pool by score.
	var out []domain.RetrievedCandidate
	seen := make(map[string]bool)
	take := func(c domain.RetrievedCandidate) {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	if len(captions) > 0 {
		take(captions[0])
	}
	if len(texts) > 0 {
		take(texts[0])
	}
	pool := append(append([]domain.RetrievedCandidate{}, captions...), texts...)
	sortByScore(pool)
	for _, c := range pool {
		if len(out) >= topK {
			break
		}
		take(c)
	}
	return truncate(out, topK), nil
}

// retrieveFlat handles queries without a page number: optional section
// filter, section penalty/boost, then rerank.
func (r *Retriever) retrieveFlat(ctx context.Context, query string, vec []float64, topK int) ([]domain.RetrievedCandidate, error) {
	rawK := topK * 6
	if rawK < 18 {
		rawK = 18
	}
	section := r.inferSection(query)

	var filter index.Filter
	if section != "" {
		filter.Section = section
	}
	hits, err := r.index.Search(ctx, vec, filter, rawK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 && section != "" {
		hits, err = r.index.Search(ctx, vec, index.Filter{}, rawK)
		if err != nil {
			return nil, err
		}
	}

	r.adjustSections(section, hits)
	r.rerank(query, hits)
	sortByScore(hits)
	return truncate(dedupe(hits), topK), nil
}

// inferSection returns the first configured section label mentioned in the
// query, or "".
func (r *Retriever) inferSection(query string) string {
	ql := strings.ToLower(query)
	for _, label := range r.opts.SectionLabels {
		if label != "" && strings.Contains(ql, strings.ToLower(label)) {
			return label
		}
	}
	return ""
}

// adjustSections boosts excerpts whose heading matches the asked section and
// penalizes excerpts explicitly belonging to a different known section.
func (r *Retriever) adjustSections(asked string, hits []domain.RetrievedCandidate) {
	if len(r.opts.SectionLabels) == 0 {
		return
	}
	for i := range hits {
		sec := hits[i].Metadata.Section
		if sec == "" {
			continue
		}
		if asked != "" && strings.EqualFold(sec, asked) {
			hits[i].Score += sectionBoost
			continue
		}
		for _, label := range r.opts.SectionLabels {
			if strings.EqualFold(sec, label) && !strings.EqualFold(label, asked) {
				hits[i].Score -= sectionPenalty
				break
			}
		}
	}
}

// rerank applies the keyword boost and lexical bonus in place.
func (r *Retriever) rerank(query string, hits []domain.RetrievedCandidate) {
	if !r.opts.DisableKeywordRerank {
		keywordRerank(query, hits)
	}
	if !r.opts.DisableLexicalBonus {
		lexicalBonus(query, hits)
	}
}

var tokenRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\d+`)

// keywordRerank adds a bounded boost proportional to literal occurrences of
// the query's content words (length >= 4, stopword-filtered).
func keywordRerank(query string, hits []domain.RetrievedCandidate) {
	terms := contentTerms(query, 4)
	if len(terms) == 0 {
		return
	}
	for i := range hits {
		text := strings.ToLower(hits[i].Text)
		occurrences := 0
		for _, t := range terms {
			occurrences += strings.Count(text, t)
		}
		boost := keywordBoostStep * float64(occurrences)
		if boost > keywordBoostCap {
			boost = keywordBoostCap
		}
		hits[i].Score += boost
	}
}

// lexicalBonus adds 0.25 * (matched query terms / total query terms) with a
// more permissive tokenization (length >= 3).
func lexicalBonus(query string, hits []domain.RetrievedCandidate) {
	terms := contentTerms(query, 3)
	if len(terms) == 0 {
		return
	}
	for i := range hits {
		text := strings.ToLower(hits[i].Text)
		matched := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				matched++
			}
		}
		hits[i].Score += lexicalWeight * float64(matched) / float64(len(terms))
	}
}

func contentTerms(query string, minLen int) []string {
	raw := tokenRe.FindAllString(strings.ToLower(query), -1)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if len([]rune(t)) < minLen {
			continue
		}
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortByScore(hits []domain.RetrievedCandidate) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func dedupe(hits []domain.RetrievedCandidate) []domain.RetrievedCandidate {
	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	return out
}

func truncate(hits []domain.RetrievedCandidate, topK int) []domain.RetrievedCandidate {
	if len(hits) > topK {
		return hits[:topK]
	}
	return hits
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "with": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "from": {}, "into": {},
	"about": {}, "what": {}, "which": {}, "does": {}, "how": {}, "many": {},
	"much": {}, "where": {}, "when": {}, "page": {}, "sayfa": {}, "nedir": {},
}
