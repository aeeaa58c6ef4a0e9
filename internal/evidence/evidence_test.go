package evidence

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"docqa/internal/domain"
)

func candidates() []domain.RetrievedCandidate {
	return []domain.RetrievedCandidate{
		{ID: "c1", Text: "The eaves height is measured from ground level at the base of the outside wall."},
		{ID: "c2", Text: "This restriction means no extension may exceed four metres in height."},
	}
}

func TestValidateRawAcceptsExactQuote(t *testing.T) {
	v := NewValidator(nil)
	raw := `{"answer":"Four metres.","evidence":[{"source_id":2,"chunk_id":"c2","quote":"no extension may exceed four metres"}]}`
	got := v.ValidateRaw(raw, candidates(), "What is the height limit?")
	want := domain.AnswerPayload{
		Answer: "Four metres.",
		Evidence: []domain.Evidence{
			{SourceID: 2, ChunkID: "c2", Quote: "no extension may exceed four metres"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRawRejectsFabricatedQuote(t *testing.T) {
	v := NewValidator(nil)
	raw := `{"answer":"Four metres.","evidence":[{"source_id":2,"chunk_id":"c2","quote":"five metres maximum"}]}`
	got := v.ValidateRaw(raw, candidates(), "What is the height limit?")
	if len(got.Evidence) != 0 {
		t.Errorf("fabricated quote survived validation: %+v", got.Evidence)
	}
	if got.Answer != "Four metres." {
		t.Errorf("answer = %q, claim dropping should not rewrite the answer", got.Answer)
	}
}

func TestValidateRawChunkIDMismatchDropsItem(t *testing.T) {
	v := NewValidator(nil)
	raw := `{"answer":"x","evidence":[{"source_id":1,"chunk_id":"c2","quote":"eaves height"}]}`
	got := v.ValidateRaw(raw, candidates(), "q")
	if len(got.Evidence) != 0 {
		t.Errorf("chunk_id mismatch should drop the item, got %+v", got.Evidence)
	}
}

func TestValidateRawToleratesMarkdownFence(t *testing.T) {
	v := NewValidator(nil)
	raw := "```json\n{\"answer\":\"Four metres.\",\"evidence\":[{\"source_id\":2,\"chunk_id\":\"c2\",\"quote\":\"four metres\"}]}\n```"
	got := v.ValidateRaw(raw, candidates(), "q")
	if len(got.Evidence) != 1 {
		t.Fatalf("fenced JSON should parse, got %+v", got)
	}
}

func TestValidateRawGarbageFallsBack(t *testing.T) {
	v := NewValidator(nil)
	got := v.ValidateRaw("I cannot answer that.", candidates(), "q")
	if got.Answer != domain.FallbackAnswer {
		t.Errorf("answer = %q, want fallback", got.Answer)
	}
	if len(got.Evidence) != 0 {
		t.Errorf("fallback payload must carry no evidence")
	}
}

func TestValidateRawMalformedItemDropsOnlyThatItem(t *testing.T) {
	v := NewValidator(nil)
	raw := `{"answer":"x","evidence":["not an object",{"source_id":"2","chunk_id":"c2","quote":"four metres"}]}`
	got := v.ValidateRaw(raw, candidates(), "q")
	if len(got.Evidence) != 1 || got.Evidence[0].SourceID != 2 {
		t.Errorf("string source_id should coerce and malformed item drop, got %+v", got.Evidence)
	}
}

func TestValidateStrictYesNo(t *testing.T) {
	v := NewValidator(nil)
	q := "Is there a figure on page 5? Answer YES/NO"

	got := v.ValidateRaw(`{"answer":"yes","evidence":[]}`, candidates(), q)
	if got.Answer != "YES" {
		t.Errorf("answer = %q, want uppercased YES", got.Answer)
	}

	got = v.ValidateRaw(`{"answer":"Yes, there is.","evidence":[]}`, candidates(), q)
	if got.Answer != domain.FallbackAnswer {
		t.Errorf("non-YES/NO answer in strict mode = %q, want fallback", got.Answer)
	}
}

func TestValidateStrictNumberOnly(t *testing.T) {
	v := NewValidator(nil)
	q := "How many windows? Reply with only the number."

	got := v.ValidateRaw(`{"answer":" 3 ","evidence":[]}`, candidates(), q)
	if got.Answer != "3" {
		t.Errorf("answer = %q, want trimmed digits", got.Answer)
	}

	got = v.ValidateRaw(`{"answer":"3 windows","evidence":[]}`, candidates(), q)
	if got.Answer != domain.FallbackAnswer {
		t.Errorf("non-numeric strict answer = %q, want fallback", got.Answer)
	}
}

func TestValidateCapsAndDedupes(t *testing.T) {
	v := NewValidator(nil)
	raw := `{"answer":"x","evidence":[
		{"source_id":1,"chunk_id":"c1","quote":"eaves height"},
		{"source_id":1,"chunk_id":"c1","quote":"eaves height"},
		{"source_id":2,"chunk_id":"c2","quote":"four metres"},
		{"source_id":2,"chunk_id":"c2","quote":"This restriction means"}]}`
	got := v.ValidateRaw(raw, candidates(), "q")
	if len(got.Evidence) != MaxEvidence {
		t.Fatalf("evidence len = %d, want cap %d", len(got.Evidence), MaxEvidence)
	}
	if got.Evidence[0].Quote == got.Evidence[1].Quote {
		t.Error("duplicate quotes should be dropped")
	}
}

func TestValidateQuoteOverLimitDropped(t *testing.T) {
	v := NewValidator(nil)
	long := strings.Repeat("a", MaxQuoteLen+1)
	cands := []domain.RetrievedCandidate{{ID: "c1", Text: strings.Repeat("a", 900)}}
	got := v.Validate(domain.AnswerPayload{
		Answer:   "x",
		Evidence: []domain.Evidence{{SourceID: 1, ChunkID: "c1", Quote: long}},
	}, cands, "q")
	if len(got.Evidence) != 0 {
		t.Errorf("over-length quote survived: %d items", len(got.Evidence))
	}
}

func TestValidateQuoteLimitCountsCharacters(t *testing.T) {
	v := NewValidator(nil)
	// 100 characters but 200 bytes; must pass the 180-character cap.
	quote := strings.Repeat("ş", 100)
	cands := []domain.RetrievedCandidate{{ID: "c1", Text: "başlık " + quote + " devamı"}}
	got := v.Validate(domain.AnswerPayload{
		Answer:   "x",
		Evidence: []domain.Evidence{{SourceID: 1, ChunkID: "c1", Quote: quote}},
	}, cands, "q")
	if len(got.Evidence) != 1 {
		t.Fatalf("multibyte quote within the character cap was rejected: %+v", got)
	}
	if got.Evidence[0].Quote != quote {
		t.Errorf("quote = %q", got.Evidence[0].Quote)
	}
}

func TestExcerptTruncationCountsCharacters(t *testing.T) {
	v := NewValidator(nil)
	// 710 characters of multibyte text; the excerpt keeps the first 700
	// characters, so a quote ending at character 700 must still match.
	text := strings.Repeat("ş", MaxExcerptLen) + strings.Repeat("x", 10)
	cands := []domain.RetrievedCandidate{{ID: "c1", Text: text}}

	inRange := strings.Repeat("ş", 100)
	got := v.Validate(domain.AnswerPayload{
		Answer:   "x",
		Evidence: []domain.Evidence{{SourceID: 1, ChunkID: "c1", Quote: inRange}},
	}, cands, "q")
	if len(got.Evidence) != 1 {
		t.Errorf("quote within the 700-character excerpt was rejected")
	}

	got = v.Validate(domain.AnswerPayload{
		Answer:   "x",
		Evidence: []domain.Evidence{{SourceID: 1, ChunkID: "c1", Quote: "xxxxxxxxxx"}},
	}, cands, "q")
	if len(got.Evidence) != 0 {
		t.Errorf("quote past the 700-character boundary was accepted")
	}
}

func TestTruncateRunes(t *testing.T) {
	s := strings.Repeat("ş", 10)
	got := TruncateRunes(s, 4)
	if got != "şşşş" {
		t.Errorf("TruncateRunes = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multibyte sequence")
	}
	if TruncateRunes("abc", 10) != "abc" {
		t.Error("short strings must pass through unchanged")
	}
}

func TestValidateMatchesTruncatedExcerpt(t *testing.T) {
	v := NewValidator(nil)
	// A quote that exists only past the excerpt truncation point must fail.
	text := strings.Repeat("x", MaxExcerptLen) + " hidden tail sentence"
	cands := []domain.RetrievedCandidate{{ID: "c1", Text: text}}
	got := v.Validate(domain.AnswerPayload{
		Answer:   "x",
		Evidence: []domain.Evidence{{SourceID: 1, ChunkID: "c1", Quote: "hidden tail sentence"}},
	}, cands, "q")
	if len(got.Evidence) != 0 {
		t.Error("quote beyond the truncated excerpt should be rejected")
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := NewValidator(nil)
	cands := candidates()
	raw := `{"answer":"Four metres.","evidence":[{"source_id":2,"chunk_id":"c2","quote":"four metres"}]}`
	once := v.ValidateRaw(raw, cands, "q")
	twice := v.Validate(once, cands, "q")
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("validation not idempotent (-once +twice):\n%s", diff)
	}
}

func TestExtractJSONBlock(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"prose before {\"a\":1} prose after", `{"a":1}`},
		{"no braces at all", "no braces at all"},
	}
	for _, c := range cases {
		if got := ExtractJSONBlock(c.in); got != c.want {
			t.Errorf("ExtractJSONBlock(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
