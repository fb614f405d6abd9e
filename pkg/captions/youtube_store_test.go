package captions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z-wentao/ytscribe/pkg/retry"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="1.5">It&amp;#39;s a</text>
<text start="2" dur="2.25">test
video</text>
</transcript>`

const translatedXML = `<transcript><text start="0.5" dur="3">C&amp;#39;est un test</text></transcript>`

func newCaptionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "abc123" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
{"baseUrl":"%[1]s/api/timedtext?v=abc123&lang=en&fmt=srv3","languageCode":"en","isTranslatable":true,"name":{"simpleText":"English"}},
{"baseUrl":"%[1]s/api/timedtext?v=abc123&lang=en&kind=asr","languageCode":"en","kind":"asr","isTranslatable":true},
{"baseUrl":"%[1]s/api/timedtext?v=abc123&lang=de&exp=xpe","languageCode":"de"}
]}}};var meta = {};</script></html>`, srv.URL)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fmt") != "" {
			t.Errorf("fmt parameter should be stripped, got %q", q.Get("fmt"))
		}
		switch q.Get("tlang") {
		case "":
			fmt.Fprint(w, timedTextXML)
		case "fr":
			fmt.Fprint(w, translatedXML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(srv *httptest.Server) *YouTubeStore {
	return NewYouTubeStore(srv.Client(),
		WithBaseURL(srv.URL),
		WithUserAgent("test-agent"),
		WithRetry(retry.Config{MaxAttempts: 1}))
}

func TestYouTubeStoreListTracks(t *testing.T) {
	srv := newCaptionServer(t)
	store := newTestStore(srv)

	tracks, err := store.ListTracks(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 usable tracks (PoToken track skipped), got %d", len(tracks))
	}
	if tracks[0].IsGenerated() || !tracks[1].IsGenerated() {
		t.Fatal("kind=asr should mark the second track as generated")
	}

	got, err := tracks[0].Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(got))
	}
	if got[0].Text != "It's a" || got[1].Text != "test video" {
		t.Fatalf("unexpected cue text: %+v", got)
	}
	if got[1].Start != 2 || got[1].End != 4.25 {
		t.Fatalf("unexpected timing: %+v", got[1])
	}
}

func TestYouTubeStoreTranslate(t *testing.T) {
	srv := newCaptionServer(t)
	store := newTestStore(srv)

	tracks, err := store.ListTracks(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	fr, err := tracks[0].Translate("fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if fr.LanguageCode() != "fr" {
		t.Fatalf("LanguageCode = %q", fr.LanguageCode())
	}
	got, err := fr.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Text != "C'est un test" {
		t.Fatalf("unexpected cues: %+v", got)
	}

	ja, _ := tracks[0].Translate("ja")
	if _, err := ja.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for unavailable translation")
	}
}

func TestYouTubeStoreEndToEndWithFetcher(t *testing.T) {
	srv := newCaptionServer(t)
	f := NewFetcher(newTestStore(srv), quietLogger())

	text, ok := f.Fetch(context.Background(), "abc123", "ja")
	if !ok {
		t.Fatal("expected captions")
	}
	if text != "It's a test video" {
		t.Fatalf("text = %q", text)
	}
}

func TestYouTubeStoreNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>var ytInitialPlayerResponse = {"videoDetails":{}};</script>`)
	}))
	defer srv.Close()

	tracks, err := newTestStore(srv).ListTracks(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected no tracks, got %d", len(tracks))
	}
}

func TestYouTubeStoreMissingPlayerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>consent wall</html>`)
	}))
	defer srv.Close()

	if _, err := newTestStore(srv).ListTracks(context.Background(), "abc123"); err == nil {
		t.Fatal("expected error")
	}
}
