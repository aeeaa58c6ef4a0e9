package domain

import "testing"

func TestNormalizeSpace(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a  b\t c", "a b c"},
		{"line one\nline two", "line one line two"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeSpace(c.in); got != c.want {
			t.Errorf("NormalizeSpace(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStrategyDirect(t *testing.T) {
	direct := []Strategy{StrategyObjectCount, StrategyObjectLayerCount, StrategyObjectTypeCount, StrategyDocSpan}
	for _, s := range direct {
		if !s.Direct() {
			t.Errorf("%s should be direct", s)
		}
	}
	indirect := []Strategy{StrategyCaptionText, StrategyTextOnly, StrategyShortCircuit}
	for _, s := range indirect {
		if s.Direct() {
			t.Errorf("%s should not be direct", s)
		}
	}
}

func TestFallbackPayload(t *testing.T) {
	p := Fallback()
	if p.Answer != FallbackAnswer {
		t.Errorf("answer = %q", p.Answer)
	}
	if p.Evidence == nil || len(p.Evidence) != 0 {
		t.Errorf("evidence = %v, want empty non-nil slice", p.Evidence)
	}
}
