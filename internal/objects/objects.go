package objects

import (
	"fmt"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/vocab"
)

const unknownBucket = "UNKNOWN"

// Summarize aggregates the caller-supplied object list into per-layer and
// per-type counts. Objects without a layer or type land in UNKNOWN.
func Summarize(list []domain.Object) domain.ObjectSummary {
	summary := domain.ObjectSummary{
		TotalObjects: len(list),
		ByLayer:      map[string]int{},
		ByType:       map[string]int{},
	}
	for _, obj := range list {
		layer := unknownBucket
		if obj.Layer != nil && *obj.Layer != "" {
			layer = *obj.Layer
		}
		summary.ByLayer[layer]++

		typ := unknownBucket
		if obj.Type != nil && *obj.Type != "" {
			typ = *obj.Type
		}
		summary.ByType[typ]++
	}
	return summary
}

// Verifier runs the advisory object-list checks. The checks never alter the
// answer path and never fail.
type Verifier struct {
	vocab *vocab.Vocab
}

func NewVerifier(v *vocab.Vocab) *Verifier {
	if v == nil {
		v = vocab.Default()
	}
	return &Verifier{vocab: v}
}

// Verify returns advisory diagnostics about the object list relative to the
// question and the retrieved candidates. All checks are independent and may
// fire together.
func (v *Verifier) Verify(question string, summary domain.ObjectSummary, list []domain.Object, candidates []domain.RetrievedCandidate) []domain.Check {
	checks := []domain.Check{}
	q := strings.TrimSpace(question)

	if len(list) != summary.TotalObjects {
		checks = append(checks, domain.Check{
			Level:   "warning",
			Code:    "OBJECT_SUMMARY_MISMATCH",
			Message: fmt.Sprintf("object_summary.total_objects=%d but object_list has %d items.", summary.TotalObjects, len(list)),
		})
	}

	if v.vocab.IsObjectRelated(q) && len(list) == 0 {
		checks = append(checks, domain.Check{
			Level:   "warning",
			Code:    "NO_OBJECTS_IN_SESSION",
			Message: "Question seems object-related, but current session object_list is empty.",
		})
	}

	if bad := countMalformed(list); bad > 0 {
		checks = append(checks, domain.Check{
			Level:   "warning",
			Code:    "MALFORMED_OBJECTS",
			Message: fmt.Sprintf("%d object(s) look malformed (missing type/layer or empty points).", bad),
		})
	}

	checks = append(checks, v.missingLayerChecks(q, summary, candidates)...)
	return checks
}

// countMalformed counts objects missing a type or layer field, or carrying
// an explicitly empty points collection.
func countMalformed(list []domain.Object) int {
	bad := 0
	for _, obj := range list {
		if obj.Type == nil || obj.Layer == nil {
			bad++
			continue
		}
		if obj.Points != nil && len(*obj.Points) == 0 {
			bad++
		}
	}
	return bad
}

// missingLayerChecks warns, once per recognized layer, when the question or
// the retrieved text mentions a known layer keyword but the summary has no
// case-insensitive matching key.
func (v *Verifier) missingLayerChecks(question string, summary domain.ObjectSummary, candidates []domain.RetrievedCandidate) []domain.Check {
	var texts []string
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	haystack := strings.ToLower(domain.NormalizeSpace(strings.Join(texts, " ")))
	ql := strings.ToLower(question)

	// keyword -> canonical layer, grouped so "window" and "windows" yield
	// one warning for the Windows layer.
	mentioned := map[string][]string{}
	for keyword, layer := range v.vocab.LayerHints() {
		kw := strings.ToLower(keyword)
		if strings.Contains(ql, kw) || strings.Contains(haystack, kw) {
			mentioned[layer] = append(mentioned[layer], kw)
		}
	}

	layers := make([]string, 0, len(mentioned))
	for layer := range mentioned {
		sort.Strings(mentioned[layer])
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	var checks []domain.Check
	for _, layer := range layers {
		if hasLayerKey(summary.ByLayer, mentioned[layer], layer) {
			continue
		}
		checks = append(checks, domain.Check{
			Level:   "warning",
			Code:    "LAYER_MISSING_" + strings.ToUpper(layer),
			Message: fmt.Sprintf("Doc/question mentions %q but object_list has no %q layer objects.", mentioned[layer][0], layer),
		})
	}
	return checks
}

func hasLayerKey(byLayer map[string]int, keywords []string, layer string) bool {
	for key := range byLayer {
		kl := strings.ToLower(key)
		if kl == strings.ToLower(layer) {
			return true
		}
		for _, kw := range keywords {
			if strings.Contains(kl, kw) {
				return true
			}
		}
	}
	return false
}
