package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/z-wentao/ytscribe/pkg/retry"
)

func TestGoogleTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("client") != "gtx" || q.Get("tl") != "zh-CN" || q.Get("sl") != "auto" {
			t.Errorf("unexpected query %v", q)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("q") != "Hello. World." {
			t.Errorf("q = %q", r.PostForm.Get("q"))
		}
		fmt.Fprint(w, `[[["你好。","Hello.",null,null,10],["世界。","World.",null,null,10]],null,"en",null,null,null,1]`)
	}))
	defer srv.Close()

	g := NewGoogleTranslate(srv.Client(), srv.URL)
	got, err := g.Translate(context.Background(), "Hello. World.", "auto", "zh-CN")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "你好。世界。" {
		t.Fatalf("got %q", got)
	}

	lang, err := g.Detect(context.Background(), "Hello")
	if err != nil || lang != "en" {
		t.Fatalf("Detect = %q, %v", lang, err)
	}
}

func TestGoogleTranslateRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleTranslate(srv.Client(), srv.URL).Translate(context.Background(), "x", "auto", "fr")
	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status error, got %v", err)
	}
	if !retry.IsTransient(err) {
		t.Fatal("429 should be transient")
	}
}

func TestGoogleTranslateBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>captcha</html>`)
	}))
	defer srv.Close()

	if _, err := NewGoogleTranslate(srv.Client(), srv.URL).Translate(context.Background(), "x", "auto", "fr"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseGoogleResponseEmpty(t *testing.T) {
	if _, _, err := parseGoogleResponse([]byte(`[null,null,"en"]`)); err == nil {
		t.Fatal("expected error for empty translation")
	}
}
