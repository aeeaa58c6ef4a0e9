package router

import (
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/vocab"
)

// maxFiltered caps the candidate subset handed to the generator.
const maxFiltered = 5

// Router classifies question intent and produces the resolution plan. It is
// deterministic and does no I/O.
type Router struct {
	vocab *vocab.Vocab
}

func New(v *vocab.Vocab) *Router {
	if v == nil {
		v = vocab.Default()
	}
	return &Router{vocab: v}
}

// Route inspects the question and the retrieved candidates, returning the
// plan, the filtered candidate subset and whether generation should be
// skipped entirely. The input slice is never mutated.
func (r *Router) Route(question string, candidates []domain.RetrievedCandidate) (domain.Plan, []domain.RetrievedCandidate, bool) {
	q := strings.TrimSpace(question)

	visual := r.vocab.IsVisual(q)
	askedPage := r.vocab.AskedPage(q)

	captions, texts := splitByKind(candidates)
	sortByScore(captions)
	sortByScore(texts)

	shortCircuit := false
	var filtered []domain.RetrievedCandidate

	switch {
	case visual && len(captions) == 0:
		// Visual question with nothing visual indexed: downstream must
		// answer "insufficient information" against the unfiltered set.
		shortCircuit = true
		filtered = append(filtered, candidates...)
	case visual:
		filtered = pairCaptionWithText(captions, texts, askedPage)
	default:
		if len(texts) > 0 {
			filtered = headCopy(texts, maxFiltered)
		} else {
			// No text candidates at all: take the head in given order.
			filtered = headCopy(candidates, maxFiltered)
		}
	}

	layerTarget := r.vocab.LayerTarget(q)
	typeTarget := r.vocab.TypeTarget(q)

	// Strategy rules in priority order; later rules override earlier ones.
	strategy := domain.StrategyTextOnly
	if visual {
		if len(captions) > 0 {
			strategy = domain.StrategyCaptionText
		} else {
			strategy = domain.StrategyShortCircuit
		}
	}

	if r.vocab.IsCount(q) && r.vocab.IsObjectRelated(q) {
		switch {
		case layerTarget != nil:
			strategy = domain.StrategyObjectLayerCount
		case typeTarget != nil:
			strategy = domain.StrategyObjectTypeCount
		case r.vocab.LayerHint(q) != nil:
			strategy = domain.StrategyObjectLayerCount
		case r.vocab.TypeHint(q) != nil:
			strategy = domain.StrategyObjectTypeCount
		default:
			strategy = domain.StrategyObjectCount
		}
	}

	if strategy == domain.StrategyTextOnly && askedPage != nil && r.vocab.IsRule(q) {
		strategy = domain.StrategyDocSpan
	}

	plan := domain.Plan{
		VisualIntent: visual,
		AskedPage:    askedPage,
		HasCaption:   len(captions) > 0,
		Strategy:     strategy,
		LayerTarget:  layerTarget,
		TypeTarget:   typeTarget,
	}
	return plan, filtered, shortCircuit
}

// pairCaptionWithText picks the best caption (preferring the asked page),
// pairs it with the best same-page text candidate, then fills by score.
func pairCaptionWithText(captions, texts []domain.RetrievedCandidate, askedPage *int) []domain.RetrievedCandidate {
	bestCap := captions[0]
	if askedPage != nil {
		for _, c := range captions {
			if c.Metadata.Page != nil && *c.Metadata.Page == *askedPage {
				bestCap = c
				break
			}
		}
	}

	out := []domain.RetrievedCandidate{bestCap}
	seen := map[string]bool{bestCap.ID: true}

	capPage := bestCap.Metadata.Page
	paired := false
	if capPage != nil {
		for _, t := range texts {
			if t.Metadata.Page != nil && *t.Metadata.Page == *capPage {
				out = append(out, t)
				seen[t.ID] = true
				paired = true
				break
			}
		}
	}
	if !paired && len(texts) > 0 {
		out = append(out, texts[0])
		seen[texts[0].ID] = true
	}

	pool := append(append([]domain.RetrievedCandidate{}, captions...), texts...)
	sortByScore(pool)
	for _, c := range pool {
		if len(out) >= maxFiltered {
			break
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func splitByKind(candidates []domain.RetrievedCandidate) (captions, texts []domain.RetrievedCandidate) {
	for _, c := range candidates {
		if c.Metadata.Kind == domain.KindCaption {
			captions = append(captions, c)
		} else {
			texts = append(texts, c)
		}
	}
	return captions, texts
}

func sortByScore(hits []domain.RetrievedCandidate) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func headCopy(hits []domain.RetrievedCandidate, n int) []domain.RetrievedCandidate {
	if n > len(hits) {
		n = len(hits)
	}
	return append([]domain.RetrievedCandidate{}, hits[:n]...)
}
