package subtitles

import (
	"testing"

	"github.com/z-wentao/ytscribe/pkg/models"
)

var sample = []models.Cue{
	{Start: 0, End: 5.2, Text: " Hello "},
	{Start: 5.2, End: 6, Text: ""},
	{Start: 65.5, End: 3725.001, Text: "world"},
}

func TestRenderSRT(t *testing.T) {
	want := "1\n00:00:00,000 --> 00:00:05,200\nHello\n\n" +
		"2\n00:01:05,500 --> 01:02:05,001\nworld\n\n"
	if got := RenderSRT(sample); got != want {
		t.Fatalf("RenderSRT =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderVTT(t *testing.T) {
	want := "WEBVTT\n\n" +
		"1\n00:00:00.000 --> 00:00:05.200\nHello\n\n" +
		"2\n00:01:05.500 --> 01:02:05.001\nworld\n\n"
	if got := Render(FormatVTT, sample); got != want {
		t.Fatalf("RenderVTT =\n%q\nwant\n%q", got, want)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatSRT, "SRT": FormatSRT, "vtt": FormatVTT, "webvtt": FormatVTT} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("ass"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
