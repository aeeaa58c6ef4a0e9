package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/evidence"
	"docqa/internal/vocab"
)

const maxQuoteCandidates = 8

// Builder assembles the generator prompt: numbered SOURCE blocks with exact
// excerpts and copyable quote candidates, the session object summary, and
// the strict-output instructions. Deterministic for a given input.
type Builder struct {
	vocab *vocab.Vocab
}

func NewBuilder(v *vocab.Vocab) *Builder {
	if v == nil {
		v = vocab.Default()
	}
	return &Builder{vocab: v}
}

// Build renders the prompt for the question over the given candidates.
// Source numbering here must match the numbering the evidence validator
// uses afterwards.
func (b *Builder) Build(question string, summary domain.ObjectSummary, candidates []domain.RetrievedCandidate) string {
	var blocks []string
	hasCaption := false

	for i, c := range candidates {
		md := c.Metadata
		if md.Kind == domain.KindCaption {
			hasCaption = true
		}
		filename := md.Filename
		if filename == "" {
			filename = "unknown"
		}
		page := "unknown"
		if md.Page != nil {
			page = fmt.Sprintf("%d", *md.Page)
		}
		chunkID := c.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("chunk_%d", i+1)
		}

		// Truncate without an ellipsis so evidence substring checks hold.
		text := evidence.TruncateRunes(domain.NormalizeSpace(c.Text), evidence.MaxExcerptLen)

		qcLines := "  - (none)"
		if cands := b.quoteCandidates(text); len(cands) > 0 {
			for j, qc := range cands {
				cands[j] = "  - " + qc
			}
			qcLines = strings.Join(cands, "\n")
		}

		blocks = append(blocks, fmt.Sprintf(
			"SOURCE %d\nkind: %s\nchunk_id: %s\nfile: %s\npage: %s\nsection: %s\nexcerpt: %s\nquote_candidates (copy EXACTLY one of these as evidence.quote):\n%s",
			i+1, md.Kind, chunkID, filename, page, md.Section, text, qcLines))
	}

	context := "NO_EXCERPTS_FOUND"
	if len(blocks) > 0 {
		context = strings.Join(blocks, "\n\n")
	}

	objJSON, _ := json.Marshal(summary)
	visual := b.vocab.IsVisual(question)
	askedPage := "none"
	if p := b.vocab.AskedPage(question); p != nil {
		askedPage = fmt.Sprintf("%d", *p)
	}
	yesNoOnly := b.vocab.YesNoOnly(question)
	numberOnly := b.vocab.NumberOnly(question)

	return fmt.Sprintf(`You are a hybrid RAG QA agent.

Return ONLY valid JSON (no markdown, no backticks).

OBJECT_SUMMARY (session-only; OK to use it for object counting/presence, NOT for document facts):
%s

SOURCE KIND:
- kind=text    => extracted PDF text
- kind=caption => generated from a page image (diagram/table/figure)

STRICT OUTPUT MODES:
- If the question requests YES/NO only (yesno_only=%t), then answer MUST be exactly "YES" or "NO" (no extra words).
- If the question requests number-only (number_only=%t), then answer MUST be only digits (e.g., "3"), nothing else.

DOCUMENT RULES:
- Use ONLY the SOURCES for factual claims about the document.
- If asked_page=%s is not none, prefer SOURCES from that page.
- If visual_intent=true and there is at least one kind=caption source:
  - Answer MUST primarily summarize caption content.
- Use kind=caption for "what is shown"; use kind=text for rules/measurements/definitions.

OBJECT RULES:
- You may use OBJECT_SUMMARY for: counts, presence/absence per layer/type, simple aggregations.
- If you mention object facts, they MUST be consistent with OBJECT_SUMMARY.

EVIDENCE RULES:
- Evidence is required for any document-derived claim.
- evidence.quote MUST be copied EXACTLY from quote_candidates (preferred) OR an exact substring of excerpt.
- quote length <= 180 chars.
- Max 2 evidence items.
- evidence.source_id must match SOURCE number.
- evidence.chunk_id must match that SOURCE chunk_id.
- If the question explicitly asks for a quote from page X, provide at least one evidence item from that page if available.

IMPORTANT (visual questions):
- If the question asks about a diagram/figure/table AND there is NO kind=caption source, output EXACTLY:
  { "answer": "%s", "evidence": [] }

If you cannot support any document claim with an exact quote, output EXACTLY:
{ "answer": "%s", "evidence": [] }

Question visual_intent=%t has_caption=%t

JSON schema:
{"answer": "string (max 3 sentences, unless strict YES/NO or number-only is requested)", "evidence": [{"source_id": 1, "chunk_id": "string", "quote": "string (<=180 chars)"}]}

SOURCES:
%s

Question:
%s

Return JSON only:
`, objJSON, yesNoOnly, numberOnly, askedPage, domain.FallbackAnswer, domain.FallbackAnswer, visual, hasCaption, context, question)
}

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+|;\s+`)

// quoteCandidates proposes short exact substrings of the excerpt the model
// can copy verbatim: caption bullet parts first, then configured anchor
// spans, then plain sentences.
func (b *Builder) quoteCandidates(excerpt string) []string {
	ex := domain.NormalizeSpace(excerpt)
	if ex == "" {
		return nil
	}

	var cands []string
	if strings.Contains(ex, " - ") {
		for _, part := range strings.Split(ex, " - ") {
			part = domain.NormalizeSpace(part)
			if part == "" || strings.HasPrefix(strings.ToLower(part), "figure/table caption") {
				continue
			}
			cands = append(cands, capQuote(part))
			if len(cands) >= maxQuoteCandidates {
				break
			}
		}
	}

	if len(cands) < 3 {
		cands = append(cands, b.anchorSpans(ex)...)
	}

	if len(cands) == 0 {
		for _, part := range splitSentences(ex) {
			part = domain.NormalizeSpace(part)
			if part == "" {
				continue
			}
			cands = append(cands, capQuote(part))
			if len(cands) >= maxQuoteCandidates {
				break
			}
		}
	}

	out := make([]string, 0, len(cands))
	seen := map[string]bool{}
	for _, c := range cands {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) >= maxQuoteCandidates {
			break
		}
	}
	return out
}

// anchorSpans cuts a window around each configured anchor phrase present in
// the excerpt. Window bounds are character offsets so a cut never splits a
// multibyte sequence.
func (b *Builder) anchorSpans(ex string) []string {
	var out []string
	low := strings.ToLower(ex)
	runes := []rune(ex)
	anchors := append(append([]string{}, b.vocab.SpanAnchors()...), b.vocab.MeasurePhrases()...)
	for _, a := range anchors {
		idx := strings.Index(low, strings.ToLower(a))
		if idx == -1 {
			continue
		}
		pos := utf8.RuneCountInString(ex[:idx])
		start := pos - 40
		if start < 0 {
			start = 0
		}
		end := pos + utf8.RuneCountInString(a) + 120
		if end > len(runes) {
			end = len(runes)
		}
		cand := capQuote(domain.NormalizeSpace(string(runes[start:end])))
		if cand != "" {
			out = append(out, cand)
		}
	}
	return out
}

func splitSentences(ex string) []string {
	return sentenceSplitRe.Split(ex, -1)
}

func capQuote(s string) string {
	return evidence.TruncateRunes(s, evidence.MaxQuoteLen)
}
