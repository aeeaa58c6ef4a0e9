package evidence

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/vocab"
)

const (
	// MaxExcerptLen is the per-source excerpt length, in characters, shown to
	// the generator. Truncation adds no ellipsis so substring checks stay
	// exact.
	MaxExcerptLen = 700
	MaxQuoteLen   = 180
	MaxEvidence   = 2
)

// TruncateRunes returns s cut to at most max characters. All length limits in
// the pipeline count characters, not bytes, so truncation never splits a
// multibyte sequence.
func TruncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Validator checks a candidate answer's citations against the exact
// excerpts shown to the generator. It is total: malformed input degrades to
// the fallback payload, never an error.
type Validator struct {
	vocab *vocab.Vocab
}

func NewValidator(v *vocab.Vocab) *Validator {
	if v == nil {
		v = vocab.Default()
	}
	return &Validator{vocab: v}
}

// source is one entry of the 1-based source map built over the candidate
// list, in the exact order shown to the generator.
type source struct {
	chunkID string
	excerpt string
}

// claim is one evidence item before validation. SourceID is left loose so a
// malformed id drops the item, not the payload.
type claim struct {
	SourceID any    `json:"source_id"`
	ChunkID  string `json:"chunk_id"`
	Quote    string `json:"quote"`
}

// ExtractJSONBlock returns the substring from the first '{' to the last '}'
// of s, tolerating markdown fences and surrounding prose.
func ExtractJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i == -1 || j == -1 || j <= i {
		return s
	}
	return s[i : j+1]
}

// ValidateRaw parses the generator's raw output and validates its evidence.
// Parse failure yields the fallback payload.
func (v *Validator) ValidateRaw(raw string, candidates []domain.RetrievedCandidate, question string) domain.AnswerPayload {
	var parsed struct {
		Answer   string            `json:"answer"`
		Evidence []json.RawMessage `json:"evidence"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONBlock(raw)), &parsed); err != nil {
		return domain.Fallback()
	}
	claims := make([]claim, 0, len(parsed.Evidence))
	for _, item := range parsed.Evidence {
		var c claim
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		claims = append(claims, c)
	}
	answer := strings.TrimSpace(parsed.Answer)
	if answer == "" {
		answer = domain.FallbackAnswer
	}
	return v.validate(answer, claims, candidates, question)
}

// Validate re-validates an already-typed payload against the same candidate
// set. It is idempotent.
func (v *Validator) Validate(payload domain.AnswerPayload, candidates []domain.RetrievedCandidate, question string) domain.AnswerPayload {
	claims := make([]claim, 0, len(payload.Evidence))
	for _, ev := range payload.Evidence {
		claims = append(claims, claim{SourceID: ev.SourceID, ChunkID: ev.ChunkID, Quote: ev.Quote})
	}
	return v.validate(payload.Answer, claims, candidates, question)
}

func (v *Validator) validate(answer string, claims []claim, candidates []domain.RetrievedCandidate, question string) domain.AnswerPayload {
	// Strict output modes trump everything else.
	if v.vocab.YesNoOnly(question) {
		up := strings.ToUpper(strings.TrimSpace(answer))
		if up != "YES" && up != "NO" {
			return domain.Fallback()
		}
		answer = up
	} else if v.vocab.NumberOnly(question) {
		trimmed := strings.TrimSpace(answer)
		if trimmed == "" || !allDigits(trimmed) {
			return domain.Fallback()
		}
		answer = trimmed
	}

	sources := buildSourceMap(candidates)

	accepted := []domain.Evidence{}
	seenQuotes := map[string]bool{}
	for _, c := range claims {
		sid, ok := asInt(c.SourceID)
		if !ok {
			continue
		}
		src, ok := sources[sid]
		if !ok {
			continue
		}
		if c.ChunkID != src.chunkID {
			continue
		}
		quote := domain.NormalizeSpace(c.Quote)
		if quote == "" || utf8.RuneCountInString(quote) > MaxQuoteLen {
			continue
		}
		if !strings.Contains(src.excerpt, quote) {
			continue
		}
		if seenQuotes[quote] {
			continue
		}
		seenQuotes[quote] = true
		accepted = append(accepted, domain.Evidence{SourceID: sid, ChunkID: src.chunkID, Quote: quote})
		if len(accepted) >= MaxEvidence {
			break
		}
	}
	return domain.AnswerPayload{Answer: answer, Evidence: accepted}
}

// buildSourceMap maps 1-based source index to the candidate id and the
// normalized, truncated excerpt the generator saw.
func buildSourceMap(candidates []domain.RetrievedCandidate) map[int]source {
	m := make(map[int]source, len(candidates))
	for i, c := range candidates {
		excerpt := TruncateRunes(domain.NormalizeSpace(c.Text), MaxExcerptLen)
		m[i+1] = source{chunkID: c.ID, excerpt: excerpt}
	}
	return m
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
