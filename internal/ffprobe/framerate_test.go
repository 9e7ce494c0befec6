package ffprobe

import "testing"

func TestResolveFramerateUsesCFRWhenSane(t *testing.T) {
	s := &ffprobeStream{RFrameRate: "24000/1001", AvgFrameRate: "23.9/1"}
	got := resolveFramerate(s)
	if got < 23.9 || got > 24.1 {
		t.Errorf("resolveFramerate() = %v, want ~23.976", got)
	}
}

func TestResolveFramerateFallsBackToAvgWhenCFROutOfRange(t *testing.T) {
	s := &ffprobeStream{RFrameRate: "0/0", AvgFrameRate: "25/1"}
	got := resolveFramerate(s)
	if got != 25 {
		t.Errorf("resolveFramerate() = %v, want 25", got)
	}
}

func TestResolveFramerateOutOfWindowReturnsZero(t *testing.T) {
	s := &ffprobeStream{RFrameRate: "5/1", AvgFrameRate: "5/1"}
	got := resolveFramerate(s)
	if got != 0 {
		t.Errorf("resolveFramerate() = %v, want 0 for below-window rate", got)
	}
}

func TestParseFractionMalformed(t *testing.T) {
	if _, err := parseFraction("garbage"); err == nil {
		t.Error("parseFraction() expected error for malformed input")
	}
	if _, err := parseFraction("1/0"); err == nil {
		t.Error("parseFraction() expected error for zero denominator")
	}
}
