package direct

import (
	"strings"
	"testing"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/evidence"
	"docqa/internal/vocab"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func summaryFixture() domain.ObjectSummary {
	return domain.ObjectSummary{
		TotalObjects: 5,
		ByLayer:      map[string]int{"Windows": 3, "Highway": 2},
		ByType:       map[string]int{"POLYLINE": 4, "LINE": 1},
	}
}

func TestResolveObjectCount(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyObjectCount}
	payload, _, ok := r.Resolve("How many objects are there?", plan, summaryFixture(), nil)
	if !ok {
		t.Fatal("object count must resolve directly")
	}
	if payload.Answer != "5" {
		t.Errorf("answer = %q, want 5", payload.Answer)
	}
	if len(payload.Evidence) != 0 {
		t.Errorf("count answers carry no evidence, got %+v", payload.Evidence)
	}
}

func TestResolveLayerCountFromHint(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyObjectLayerCount}
	payload, _, ok := r.Resolve("How many window objects?", plan, summaryFixture(), nil)
	if !ok || payload.Answer != "3" {
		t.Errorf("answer = %q ok=%t, want 3 via the Windows hint", payload.Answer, ok)
	}
}

func TestResolveLayerCountExplicitTargetWins(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{
		Strategy:    domain.StrategyObjectLayerCount,
		LayerTarget: strPtr("Highway"),
	}
	// The question mentions windows but the explicit target takes priority.
	payload, _, ok := r.Resolve("How many window objects on layer Highway?", plan, summaryFixture(), nil)
	if !ok || payload.Answer != "2" {
		t.Errorf("answer = %q ok=%t, want 2 for the explicit Highway target", payload.Answer, ok)
	}
}

func TestResolveLayerCountCaseInsensitive(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyObjectLayerCount, LayerTarget: strPtr("windows")}
	payload, _, ok := r.Resolve("q", plan, summaryFixture(), nil)
	if !ok || payload.Answer != "3" {
		t.Errorf("answer = %q, want case-insensitive match on Windows", payload.Answer)
	}
}

func TestResolveTypeCount(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyObjectTypeCount, TypeTarget: strPtr("POLYLINE")}
	payload, _, ok := r.Resolve("q", plan, summaryFixture(), nil)
	if !ok || payload.Answer != "4" {
		t.Errorf("answer = %q, want 4", payload.Answer)
	}
}

func TestResolveUnknownTargetIsZero(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyObjectLayerCount, LayerTarget: strPtr("Doors")}
	payload, _, ok := r.Resolve("q", plan, summaryFixture(), nil)
	if !ok || payload.Answer != "0" {
		t.Errorf("answer = %q, want 0 for an absent layer", payload.Answer)
	}
}

func TestResolveNonDirectStrategyFallsThrough(t *testing.T) {
	r := New(nil)
	plan := domain.Plan{Strategy: domain.StrategyTextOnly}
	_, _, ok := r.Resolve("q", plan, summaryFixture(), nil)
	if ok {
		t.Error("text_only must not resolve directly")
	}
}

func TestResolveDocSpanAnchoredSentence(t *testing.T) {
	r := New(nil)
	text := "Some preamble here. This restriction means no extension may exceed four metres. Another sentence."
	cands := []domain.RetrievedCandidate{{
		ID:       "c1",
		Text:     text,
		Metadata: domain.Metadata{Page: intPtr(12), Kind: domain.KindText},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan, AskedPage: intPtr(12)}
	payload, used, ok := r.Resolve("Explain what the restriction on page 12 means.", plan, domain.ObjectSummary{}, cands)
	if !ok {
		t.Fatal("doc span with a text candidate must resolve")
	}
	want := "This restriction means no extension may exceed four metres."
	if payload.Answer != want {
		t.Errorf("answer = %q, want %q", payload.Answer, want)
	}
	if len(payload.Evidence) != 1 || payload.Evidence[0].SourceID != 1 || payload.Evidence[0].ChunkID != "c1" {
		t.Fatalf("evidence = %+v, want single item citing c1 as source 1", payload.Evidence)
	}
	if len(used) != 1 || used[0].ID != "c1" {
		t.Errorf("usedHits = %+v, want just the cited candidate", used)
	}
	excerpt := domain.NormalizeSpace(text)
	if !strings.Contains(excerpt, payload.Evidence[0].Quote) {
		t.Error("quote must be an exact substring of the normalized excerpt")
	}
}

func TestResolveDocSpanMeasurePhrase(t *testing.T) {
	v := vocab.Default()
	r := New(v)
	cands := []domain.RetrievedCandidate{{
		ID:       "c1",
		Text:     "Eaves height is measured from the ground level",
		Metadata: domain.Metadata{Page: intPtr(12), Kind: domain.KindText},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan, AskedPage: intPtr(12)}
	payload, _, ok := r.Resolve("How is eaves height measured on page 12?", plan, domain.ObjectSummary{}, cands)
	if !ok {
		t.Fatal("doc span must resolve")
	}
	if payload.Answer != v.MeasureAnswer() {
		t.Errorf("answer = %q, want the canned measurement explanation", payload.Answer)
	}
}

func TestResolveDocSpanPrefersAskedPage(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{
		{ID: "other", Text: "Unrelated rule text on another page.", Metadata: domain.Metadata{Page: intPtr(3), Kind: domain.KindText}},
		{ID: "right", Text: "This restriction means a thing that matters for the answer.", Metadata: domain.Metadata{Page: intPtr(12), Kind: domain.KindText}},
	}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan, AskedPage: intPtr(12)}
	payload, _, ok := r.Resolve("q page 12", plan, domain.ObjectSummary{}, cands)
	if !ok || payload.Evidence[0].ChunkID != "right" {
		t.Errorf("doc span should cite the asked-page candidate, got %+v", payload.Evidence)
	}
}

func TestResolveDocSpanNoTextCandidates(t *testing.T) {
	r := New(nil)
	cands := []domain.RetrievedCandidate{{
		ID:       "cap",
		Text:     "a caption",
		Metadata: domain.Metadata{Kind: domain.KindCaption},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan}
	_, _, ok := r.Resolve("q", plan, domain.ObjectSummary{}, cands)
	if ok {
		t.Error("doc span with no text candidate must fall through to generation")
	}
}

func TestResolveDocSpanMultibyteAnchoredSentence(t *testing.T) {
	r := New(nil)
	// 124 characters but well over 180 bytes; the quote cap counts
	// characters, so the whole sentence must survive as the quote.
	sent := "This restriction means " + strings.Repeat("ş", 100) + "."
	cands := []domain.RetrievedCandidate{{
		ID:       "c1",
		Text:     "Önsöz metni. " + sent + " Devamı.",
		Metadata: domain.Metadata{Page: intPtr(12), Kind: domain.KindText},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan, AskedPage: intPtr(12)}
	payload, _, ok := r.Resolve("Explain the restriction on page 12.", plan, domain.ObjectSummary{}, cands)
	if !ok {
		t.Fatal("doc span must resolve")
	}
	if payload.Answer != sent {
		t.Errorf("answer = %q, want the full anchored sentence", payload.Answer)
	}
	if len(payload.Evidence) != 1 || payload.Evidence[0].Quote != sent {
		t.Fatalf("evidence = %+v, want the full sentence as the quote", payload.Evidence)
	}
	if !utf8.ValidString(payload.Evidence[0].Quote) {
		t.Error("quote contains a split multibyte sequence")
	}
}

func TestResolveDocSpanMultibyteHeadCut(t *testing.T) {
	r := New(nil)
	long := strings.Repeat("şehir planı ", 60)
	cands := []domain.RetrievedCandidate{{
		ID:       "c1",
		Text:     long,
		Metadata: domain.Metadata{Kind: domain.KindText},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan}
	payload, _, ok := r.Resolve("q", plan, domain.ObjectSummary{}, cands)
	if !ok {
		t.Fatal("doc span must resolve")
	}
	if !utf8.ValidString(payload.Answer) {
		t.Errorf("head cut split a multibyte sequence: %q", payload.Answer)
	}
	if n := utf8.RuneCountInString(payload.Answer); n > excerptHeadLen+1 {
		t.Errorf("answer length = %d characters, want at most %d", n, excerptHeadLen+1)
	}
	quote := payload.Evidence[0].Quote
	if !utf8.ValidString(quote) {
		t.Errorf("quote split a multibyte sequence: %q", quote)
	}
	if n := utf8.RuneCountInString(quote); n > evidence.MaxQuoteLen {
		t.Errorf("quote length = %d characters, want at most %d", n, evidence.MaxQuoteLen)
	}
	if !strings.Contains(domain.NormalizeSpace(long), quote) {
		t.Error("quote must be an exact substring of the normalized excerpt")
	}
}

func TestResolveDocSpanPlainExcerptHead(t *testing.T) {
	r := New(nil)
	long := strings.Repeat("word ", 100)
	cands := []domain.RetrievedCandidate{{
		ID:       "c1",
		Text:     long,
		Metadata: domain.Metadata{Kind: domain.KindText},
	}}
	plan := domain.Plan{Strategy: domain.StrategyDocSpan}
	payload, _, ok := r.Resolve("q", plan, domain.ObjectSummary{}, cands)
	if !ok {
		t.Fatal("doc span must resolve")
	}
	if !strings.HasSuffix(payload.Answer, ".") {
		t.Errorf("head answer should end with a period, got %q", payload.Answer)
	}
	if len(payload.Answer) > excerptHeadLen+1 {
		t.Errorf("answer length %d exceeds the head cap", len(payload.Answer))
	}
}
