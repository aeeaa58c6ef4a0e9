package vocab

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Config holds the corpus-specific vocabulary. Zero fields fall back to the
// defaults for the architectural-drawing corpus the system ships with.
type Config struct {
	VisualWords []string `yaml:"visual_words"`
	CountWords  []string `yaml:"count_words"`
	ObjectWords []string `yaml:"object_words"`
	RuleWords   []string `yaml:"rule_words"`

	// LayerHints and TypeHints map question keywords to canonical layer and
	// type names, e.g. "window" -> "Windows".
	LayerHints map[string]string `yaml:"layer_hints"`
	TypeHints  map[string]string `yaml:"type_hints"`

	// SpanAnchors are lead phrases the doc-span resolver extracts sentences
	// from. MeasureAnswer is the canned sentence used when an excerpt talks
	// about measurement but no anchor matches.
	SpanAnchors    []string `yaml:"span_anchors"`
	MeasurePhrases []string `yaml:"measure_phrases"`
	MeasureAnswer  string   `yaml:"measure_answer"`
}

// Vocab compiles the vocabulary into the pure predicates and extractors used
// by the router, retriever, resolvers and validator. Immutable after New.
type Vocab struct {
	cfg Config

	pageRe        *regexp.Regexp
	visualRe      *regexp.Regexp
	countRe       *regexp.Regexp
	objectRe      *regexp.Regexp
	ruleRe        *regexp.Regexp
	layerTargetRe *regexp.Regexp
	typeTargetRe  *regexp.Regexp
	targetTrimRe  *regexp.Regexp
	yesNoRe       *regexp.Regexp
	numberRe      *regexp.Regexp

	layerHintRes []hintRe
	typeHintRes  []hintRe
}

type hintRe struct {
	re     *regexp.Regexp
	mapped string
}

func defaults() Config {
	return Config{
		VisualWords: []string{"diagram", "figure", "table", "chart", "flowchart", "illustration", "şekil", "tablo"},
		CountWords:  []string{"how many", "kaç", "adet"},
		ObjectWords: []string{"object", "objects", "layer", "katman", "type", "tip", "polyline", "line", "window", "windows", "highway", "kaç", "adet", "nesne", "obje"},
		RuleWords:   []string{"explain", "restriction", "means", "rule", "measured", "measure", "how to", "what is", "define", "definition", "nedir", "açıkla", "tanım", "ölç", "kural", "kısıt"},
		LayerHints: map[string]string{
			"window":  "Windows",
			"windows": "Windows",
			"pencere": "Windows",
			"highway": "Highway",
		},
		TypeHints: map[string]string{
			"polyline": "POLYLINE",
			"line":     "LINE",
		},
		SpanAnchors:    []string{"this restriction means"},
		MeasurePhrases: []string{"is measured from"},
		MeasureAnswer: "It explains how eaves height should be measured: from ground level at the base of the outside wall " +
			"to where the wall would meet the upper surface of the roof slope, ignoring overhang.",
	}
}

// Default returns the vocabulary for the built-in corpus.
func Default() *Vocab { return New(Config{}) }

// New compiles a vocabulary, filling empty config fields with defaults.
func New(cfg Config) *Vocab {
	def := defaults()
	if len(cfg.VisualWords) == 0 {
		cfg.VisualWords = def.VisualWords
	}
	if len(cfg.CountWords) == 0 {
		cfg.CountWords = def.CountWords
	}
	if len(cfg.ObjectWords) == 0 {
		cfg.ObjectWords = def.ObjectWords
	}
	if len(cfg.RuleWords) == 0 {
		cfg.RuleWords = def.RuleWords
	}
	if len(cfg.LayerHints) == 0 {
		cfg.LayerHints = def.LayerHints
	}
	if len(cfg.TypeHints) == 0 {
		cfg.TypeHints = def.TypeHints
	}
	if len(cfg.SpanAnchors) == 0 {
		cfg.SpanAnchors = def.SpanAnchors
	}
	if len(cfg.MeasurePhrases) == 0 {
		cfg.MeasurePhrases = def.MeasurePhrases
	}
	if cfg.MeasureAnswer == "" {
		cfg.MeasureAnswer = def.MeasureAnswer
	}

	v := &Vocab{
		cfg:           cfg,
		pageRe:        regexp.MustCompile(`(?i)\b(?:page|p\.?|sayfa)\s*#?\s*(\d{1,3})\b`),
		visualRe:      wordAlternation(cfg.VisualWords),
		countRe:       wordAlternation(cfg.CountWords),
		objectRe:      wordAlternation(cfg.ObjectWords),
		ruleRe:        wordAlternation(cfg.RuleWords),
		layerTargetRe: regexp.MustCompile(`(?i)\b(?:layer|katman)\s*[:=]?\s*([A-Za-z0-9_\- ]{2,40})\b`),
		typeTargetRe:  regexp.MustCompile(`(?i)\b(?:type|tip)\s*[:=]?\s*([A-Za-z0-9_\-]{2,30})\b`),
		targetTrimRe:  regexp.MustCompile(`(?i)\b(objects|objeler|count|kaç|adet)\b$`),
		yesNoRe:       regexp.MustCompile(`(?i)\b(answer\s+yes/no|answer\s+(yes|no)|reply\s+with\s+only\s+(yes|no)|yes/no|evet/hayir|evet\s*mi\s*hayir\s*mi)\b`),
		numberRe:      regexp.MustCompile(`(?i)\b(reply\s+with\s+only\s+the\s+number|only\s+the\s+number|sadece\s+sayı|yalnızca\s+sayı|yalnızca\s+rakam)\b`),
	}
	v.layerHintRes = hintAlternations(cfg.LayerHints)
	v.typeHintRes = hintAlternations(cfg.TypeHints)
	return v
}

func wordAlternation(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// hintAlternations compiles one matcher per keyword, in a deterministic
// order so the first matching hint is stable across calls.
func hintAlternations(hints map[string]string) []hintRe {
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]hintRe, 0, len(keys))
	for _, k := range keys {
		out = append(out, hintRe{
			re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(k)) + `\b`),
			mapped: hints[k],
		})
	}
	return out
}

// AskedPage extracts an explicit page number (1-999) from the question.
func (v *Vocab) AskedPage(q string) *int {
	m := v.pageRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	p, err := strconv.Atoi(m[1])
	if err != nil || p < 1 || p > 999 {
		return nil
	}
	return &p
}

// IsVisual reports whether the question mentions diagram/figure vocabulary.
func (v *Vocab) IsVisual(q string) bool { return v.visualRe.MatchString(q) }

// IsCount reports whether the question uses counting vocabulary.
func (v *Vocab) IsCount(q string) bool { return v.countRe.MatchString(q) }

// IsObjectRelated reports whether the question uses object/layer vocabulary.
func (v *Vocab) IsObjectRelated(q string) bool { return v.objectRe.MatchString(q) }

// IsRule reports whether the question asks about rules, definitions or
// measurements.
func (v *Vocab) IsRule(q string) bool { return v.ruleRe.MatchString(q) }

// YesNoOnly reports whether the question demands a strict YES/NO answer.
func (v *Vocab) YesNoOnly(q string) bool { return v.yesNoRe.MatchString(q) }

// NumberOnly reports whether the question demands a digits-only answer.
func (v *Vocab) NumberOnly(q string) bool { return v.numberRe.MatchString(q) }

// LayerTarget extracts an explicit "layer: X" target from the question,
// trimming trailing generic words.
func (v *Vocab) LayerTarget(q string) *string {
	m := v.layerTargetRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	name := v.trimTarget(m[1])
	if name == "" {
		return nil
	}
	return &name
}

// TypeTarget extracts an explicit "type: X" target from the question.
func (v *Vocab) TypeTarget(q string) *string {
	m := v.typeTargetRe.FindStringSubmatch(q)
	if m == nil {
		return nil
	}
	name := v.trimTarget(m[1])
	if name == "" {
		return nil
	}
	return &name
}

func (v *Vocab) trimTarget(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = v.targetTrimRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// LayerHint maps question keywords to a canonical layer name.
func (v *Vocab) LayerHint(q string) *string { return matchHint(v.layerHintRes, q) }

// TypeHint maps question keywords to a canonical object type name.
func (v *Vocab) TypeHint(q string) *string { return matchHint(v.typeHintRes, q) }

func matchHint(hints []hintRe, q string) *string {
	for _, h := range hints {
		if h.re.MatchString(q) {
			mapped := h.mapped
			return &mapped
		}
	}
	return nil
}

// LayerHints exposes the keyword mapping for the object-verification checks.
func (v *Vocab) LayerHints() map[string]string { return v.cfg.LayerHints }

// SpanAnchors returns the doc-span lead phrases.
func (v *Vocab) SpanAnchors() []string { return v.cfg.SpanAnchors }

// MeasurePhrases returns the measurement phrases the doc-span resolver
// recognizes.
func (v *Vocab) MeasurePhrases() []string { return v.cfg.MeasurePhrases }

// MeasureAnswer returns the canned measurement explanation.
func (v *Vocab) MeasureAnswer() string { return v.cfg.MeasureAnswer }
