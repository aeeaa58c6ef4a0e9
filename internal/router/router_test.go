package router

import (
	"testing"

	"docqa/internal/domain"
)

func intPtr(n int) *int { return &n }

func caption(id string, page, score int) domain.RetrievedCandidate {
	return domain.RetrievedCandidate{
		ID:       id,
		Text:     "caption " + id,
		Metadata: domain.Metadata{Page: intPtr(page), Kind: domain.KindCaption},
		Score:    float64(score) / 10,
	}
}

func text(id string, page, score int) domain.RetrievedCandidate {
	return domain.RetrievedCandidate{
		ID:       id,
		Text:     "text " + id,
		Metadata: domain.Metadata{Page: intPtr(page), Kind: domain.KindText},
		Score:    float64(score) / 10,
	}
}

func TestRouteVisualWithCaption(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{
		text("t1", 5, 9),
		caption("c1", 5, 8),
		text("t2", 3, 7),
	}
	plan, filtered, shortCircuit := r.Route("What does the figure on page 5 show?", cands)
	if shortCircuit {
		t.Fatal("caption present, should not short-circuit")
	}
	if plan.Strategy != domain.StrategyCaptionText {
		t.Fatalf("strategy = %s, want %s", plan.Strategy, domain.StrategyCaptionText)
	}
	if !plan.VisualIntent || !plan.HasCaption {
		t.Error("plan should record visual intent and caption presence")
	}
	if plan.AskedPage == nil || *plan.AskedPage != 5 {
		t.Errorf("asked page = %v, want 5", plan.AskedPage)
	}
	if len(filtered) == 0 || filtered[0].ID != "c1" {
		t.Fatalf("filtered should start with the caption, got %+v", filtered)
	}
	if len(filtered) < 2 || filtered[1].ID != "t1" {
		t.Errorf("caption should pair with the same-page text, got %+v", filtered)
	}
}

func TestRouteVisualNoCaptionShortCircuits(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{text("t1", 5, 9), text("t2", 5, 7)}
	plan, filtered, shortCircuit := r.Route("What does the diagram on page 5 show?", cands)
	if !shortCircuit {
		t.Fatal("visual question with no captions must short-circuit")
	}
	if plan.Strategy != domain.StrategyShortCircuit {
		t.Errorf("strategy = %s, want %s", plan.Strategy, domain.StrategyShortCircuit)
	}
	if len(filtered) != len(cands) {
		t.Errorf("short-circuit keeps the unfiltered set, got %d of %d", len(filtered), len(cands))
	}
}

func TestRouteObjectCountStrategies(t *testing.T) {
	r := New(nil)
	cases := []struct {
		question string
		want     domain.Strategy
	}{
		{"How many objects are there?", domain.StrategyObjectCount},
		{"How many objects on layer: Windows?", domain.StrategyObjectLayerCount},
		{"How many type POLYLINE objects?", domain.StrategyObjectTypeCount},
		{"How many window objects?", domain.StrategyObjectLayerCount},
		{"How many polyline objects?", domain.StrategyObjectTypeCount},
	}
	for _, c := range cases {
		plan, _, _ := r.Route(c.question, nil)
		if plan.Strategy != c.want {
			t.Errorf("Route(%q) strategy = %s, want %s", c.question, plan.Strategy, c.want)
		}
	}
}

func TestRouteDocSpan(t *testing.T) {
	r := New(nil)
	plan, _, sc := r.Route("Explain what the restriction on page 12 means.", []domain.RetrievedCandidate{text("t1", 12, 9)})
	if sc {
		t.Fatal("doc-span route should not short-circuit")
	}
	if plan.Strategy != domain.StrategyDocSpan {
		t.Fatalf("strategy = %s, want %s", plan.Strategy, domain.StrategyDocSpan)
	}
	if !plan.Strategy.Direct() {
		t.Error("doc_span must be a direct strategy")
	}
}

func TestRouteTextOnlyDefault(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{
		text("t1", 1, 9), text("t2", 1, 8), text("t3", 2, 7),
		text("t4", 2, 6), text("t5", 3, 5), text("t6", 3, 4),
	}
	plan, filtered, _ := r.Route("What is the building height limit?", cands)
	if plan.Strategy != domain.StrategyTextOnly {
		t.Fatalf("strategy = %s, want %s", plan.Strategy, domain.StrategyTextOnly)
	}
	if len(filtered) != 5 {
		t.Errorf("filtered len = %d, want cap of 5", len(filtered))
	}
}

func TestRouteNoTextCandidatesKeepsGivenOrder(t *testing.T) {
	r := New(nil)
	// Non-visual question over a caption-only set: the fallback takes the
	// head of the candidates as given, not re-sorted by score.
	cands := []domain.RetrievedCandidate{
		caption("c1", 1, 2), caption("c2", 1, 9), caption("c3", 2, 5),
		caption("c4", 2, 8), caption("c5", 3, 1), caption("c6", 3, 7),
	}
	_, filtered, _ := r.Route("What is the building height limit?", cands)
	if len(filtered) != maxFiltered {
		t.Fatalf("filtered len = %d, want %d", len(filtered), maxFiltered)
	}
	for i, want := range []string{"c1", "c2", "c3", "c4", "c5"} {
		if filtered[i].ID != want {
			t.Errorf("filtered[%d] = %s, want %s", i, filtered[i].ID, want)
		}
	}
}

func TestRouteDoesNotMutateInput(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{text("low", 1, 1), text("high", 1, 9)}
	r.Route("What is the rule?", cands)
	if cands[0].ID != "low" || cands[1].ID != "high" {
		t.Error("input slice order changed")
	}
}
