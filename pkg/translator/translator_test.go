package translator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/retry"
)

type capCall struct {
	text, source, target string
}

// countingCapability 记录调用，并可让前 failures 次调用失败
type countingCapability struct {
	calls    []capCall
	failures int
	err      error
	detected string
}

func (c *countingCapability) Translate(_ context.Context, text, source, target string) (string, error) {
	c.calls = append(c.calls, capCall{text, source, target})
	if c.err != nil {
		return "", c.err
	}
	if c.failures > 0 {
		c.failures--
		return "", &retry.StatusError{StatusCode: 503}
	}
	return "[" + target + "]" + text[:1], nil
}

func (c *countingCapability) Detect(context.Context, string) (string, error) {
	if c.detected == "" {
		return "", errors.New("unknown")
	}
	return c.detected, nil
}

type sleepLog struct {
	waits []time.Duration
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestTranslator(c Capability, sl *sleepLog, opts ...Option) *Translator {
	base := []Option{
		WithSleeper(sl.sleep),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(c, append(base, opts...)...)
}

func TestTranslateIdentityShortcut(t *testing.T) {
	c := &countingCapability{}
	tr := newTestTranslator(c, &sleepLog{})

	got, err := tr.Translate(context.Background(), "Hello there", "en", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Hello there" {
		t.Fatalf("got %q", got)
	}
	if len(c.calls) != 0 {
		t.Fatalf("expected zero capability calls, got %d", len(c.calls))
	}
}

func TestTranslateInvalidInput(t *testing.T) {
	c := &countingCapability{}
	tr := newTestTranslator(c, &sleepLog{})

	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := tr.Translate(context.Background(), in, "fr", ""); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Translate(%q) error = %v, want ErrInvalidInput", in, err)
		}
	}
	if len(c.calls) != 0 {
		t.Fatal("no calls expected for invalid input")
	}
}

func TestTranslateUnsupportedLanguage(t *testing.T) {
	c := &countingCapability{}
	tr := newTestTranslator(c, &sleepLog{})

	for _, target := range []string{"xx", "", "zh-tw", "klingon", "eng", "English", "deu", "spa", "zho"} {
		if _, err := tr.Translate(context.Background(), "hello", target, ""); !errors.Is(err, models.ErrUnsupportedLanguage) {
			t.Errorf("target %q error = %v, want ErrUnsupportedLanguage", target, err)
		}
	}
	if len(c.calls) != 0 {
		t.Fatal("no calls expected for unsupported language")
	}
}

func TestTranslateTwelveThousandChars(t *testing.T) {
	c := &countingCapability{}
	sl := &sleepLog{}
	tr := newTestTranslator(c, sl)

	text := strings.Repeat("a", 4999) + strings.Repeat("b", 4999) + strings.Repeat("c", 2002)
	got, err := tr.Translate(context.Background(), text, "fr", "")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(c.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(c.calls))
	}
	for i, call := range c.calls {
		if n := utf8.RuneCountInString(call.text); n > 4999 {
			t.Errorf("chunk %d has %d chars", i, n)
		}
		if call.source != "auto" || call.target != "fr" {
			t.Errorf("chunk %d languages = %s → %s", i, call.source, call.target)
		}
	}
	if got != "[fr]a [fr]b [fr]c" {
		t.Fatalf("chunks not reassembled in order: %q", got)
	}
	if len(sl.waits) != 2 {
		t.Fatalf("expected a pause before each later chunk, got %v", sl.waits)
	}
	if sl.waits[0] <= 0 || sl.waits[0] > DefaultChunkDelay {
		t.Fatalf("unexpected inter-chunk delay %v", sl.waits[0])
	}
}

func TestTranslateSingleChunkHasNoDelay(t *testing.T) {
	c := &countingCapability{}
	sl := &sleepLog{}
	tr := newTestTranslator(c, sl)

	if _, err := tr.Translate(context.Background(), "short", "de", "en"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(sl.waits) != 0 {
		t.Fatalf("no delay expected for a single chunk, got %v", sl.waits)
	}
}

func TestTranslateRemapsCapabilityCode(t *testing.T) {
	c := &countingCapability{}
	tr := newTestTranslator(c, &sleepLog{})

	if _, err := tr.Translate(context.Background(), "hello", "ZH_CN", "en"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if c.calls[0].target != "zh-CN" || c.calls[0].source != "en" {
		t.Fatalf("unexpected codes: %+v", c.calls[0])
	}
}

func TestTranslateRetriesChunk(t *testing.T) {
	c := &countingCapability{failures: 2}
	sl := &sleepLog{}
	tr := newTestTranslator(c, sl)

	got, err := tr.Translate(context.Background(), "hola", "en", "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "[en]h" || len(c.calls) != 3 {
		t.Fatalf("got %q after %d calls", got, len(c.calls))
	}
	if len(sl.waits) != 2 || sl.waits[0] != 4*time.Second || sl.waits[1] != 8*time.Second {
		t.Fatalf("unexpected backoff %v", sl.waits)
	}
}

func TestTranslateFailsWithoutPartialOutput(t *testing.T) {
	c := &countingCapability{err: errors.New("quota exceeded")}
	tr := newTestTranslator(c, &sleepLog{}, WithChunkSize(3))

	got, err := tr.Translate(context.Background(), "abcdef", "fr", "")
	if !errors.Is(err, models.ErrTranslation) {
		t.Fatalf("expected ErrTranslation, got %v", err)
	}
	if got != "" {
		t.Fatalf("partial output returned: %q", got)
	}
	if len(c.calls) != 3 {
		t.Fatalf("first chunk should exhaust 3 attempts, got %d calls", len(c.calls))
	}
}

func TestSplitChunksRoundTrip(t *testing.T) {
	text := strings.Repeat("héllo wörld 你好 ", 700)
	chunks := SplitChunks(text, 4999)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 4999 {
			t.Fatalf("chunk %d too long", i)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks must cover the text exactly once, in order")
	}
	if got := SplitChunks("tiny", 4999); len(got) != 1 || got[0] != "tiny" {
		t.Fatalf("short text = %v", got)
	}
}

func TestSupportedLanguages(t *testing.T) {
	langs := SupportedLanguages()
	if len(langs) != 18 {
		t.Fatalf("expected 18 languages, got %d", len(langs))
	}
	if langs[0].Code != "en" || langs[9] != (Language{"zh-cn", "Chinese (Simplified)"}) || langs[17].Code != "gu" {
		t.Fatalf("unexpected catalog order: %+v", langs)
	}
	langs[0].Name = "mutated"
	if SupportedLanguages()[0].Name != "English" {
		t.Fatal("catalog must not be mutable through the returned slice")
	}
}

func TestDetectLanguage(t *testing.T) {
	tr := newTestTranslator(&countingCapability{detected: "zh-CN"}, &sleepLog{})
	if got := tr.DetectLanguage(context.Background(), "你好"); got != "zh-cn" {
		t.Fatalf("DetectLanguage = %q", got)
	}

	fallback := newTestTranslator(&countingCapability{}, &sleepLog{})
	if got := fallback.DetectLanguage(context.Background(), "???"); got != "en" {
		t.Fatalf("expected en fallback, got %q", got)
	}
}
