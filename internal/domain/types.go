package domain

import "strings"

// Kind is the candidate category: extracted document text or a generated
// caption of a page image.
type Kind string

const (
	KindText    Kind = "text"
	KindCaption Kind = "caption"
)

// Metadata carries the index-side attributes of a retrieved candidate.
// Page and Section are optional in the index payload.
type Metadata struct {
	Filename string `json:"filename"`
	Page     *int   `json:"page,omitempty"`
	Section  string `json:"section,omitempty"`
	Kind     Kind   `json:"kind"`
}

// RetrievedCandidate is one indexed unit of evidence. The score is mutable
// during the retrieval stage and fixed afterwards.
type RetrievedCandidate struct {
	ID       string   `json:"chunk_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Strategy is the router's resolution tag. Later routing rules override
// earlier ones; downstream nodes treat unknown strategies as plain generation.
type Strategy string

const (
	StrategyCaptionText      Strategy = "caption+text"
	StrategyTextOnly         Strategy = "text_only"
	StrategyShortCircuit     Strategy = "visual_no_caption_shortcircuit"
	StrategyObjectCount      Strategy = "direct_object_count"
	StrategyObjectLayerCount Strategy = "direct_object_layer_count"
	StrategyObjectTypeCount  Strategy = "direct_object_type_count"
	StrategyDocSpan          Strategy = "direct_doc_span"
)

// Direct reports whether the strategy answers without the generator.
func (s Strategy) Direct() bool { return strings.HasPrefix(string(s), "direct_") }

// Plan is the router's decision record, produced once per request and
// read-only downstream.
type Plan struct {
	VisualIntent bool     `json:"visual_intent"`
	AskedPage    *int     `json:"asked_page"`
	HasCaption   bool     `json:"has_caption"`
	Strategy     Strategy `json:"strategy"`
	LayerTarget  *string  `json:"layer_target"`
	TypeTarget   *string  `json:"type_target"`
}

// Point is a 2D coordinate of a drawing object.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is one caller-supplied structured entity. Pointer fields
// distinguish an absent key from an empty value on the wire.
type Object struct {
	Type   *string  `json:"type"`
	Layer  *string  `json:"layer"`
	Points *[]Point `json:"points,omitempty"`
}

// ObjectSummary is the per-request aggregate over the caller's object list.
type ObjectSummary struct {
	TotalObjects int            `json:"total_objects"`
	ByLayer      map[string]int `json:"by_layer"`
	ByType       map[string]int `json:"by_type"`
}

// Evidence is one cited quotation with its source pointer. SourceID is the
// 1-based index of the candidate in the list shown to the generator.
type Evidence struct {
	SourceID int    `json:"source_id"`
	ChunkID  string `json:"chunk_id"`
	Quote    string `json:"quote"`
}

// AnswerPayload is the validated answer returned to the caller. Evidence
// holds at most two items with quotes of at most 180 characters.
type AnswerPayload struct {
	Answer   string     `json:"answer"`
	Evidence []Evidence `json:"evidence"`
}

// Check is one advisory diagnostic from object verification. Checks never
// alter the answer path.
type Check struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FallbackAnswer is the fixed sentence emitted whenever the system cannot
// support a claim with verified evidence.
const FallbackAnswer = "I don't have enough information in the provided excerpts."

// Fallback returns the insufficient-information payload.
func Fallback() AnswerPayload {
	return AnswerPayload{Answer: FallbackAnswer, Evidence: []Evidence{}}
}

// NormalizeSpace collapses all whitespace runs, including newlines, to
// single spaces and trims the ends. Substring checks across the pipeline
// rely on this normalization being applied on both sides.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
