package youtube

import (
	"errors"
	"testing"

	"github.com/z-wentao/ytscribe/pkg/models"
)

func TestResolve(t *testing.T) {
	const id = "dQw4w9WgXcQ"
	tests := []struct {
		name string
		url  string
	}{
		{"watch", "https://www.youtube.com/watch?v=" + id},
		{"watch without scheme", "youtube.com/watch?v=" + id},
		{"watch http", "http://youtube.com/watch?v=" + id + "&t=42s"},
		{"watch v not first", "https://www.youtube.com/watch?feature=share&v=" + id},
		{"mobile watch", "https://m.youtube.com/watch?v=" + id},
		{"short link", "https://youtu.be/" + id},
		{"short link without scheme", "youtu.be/" + id + "?si=abc"},
		{"embed", "https://www.youtube.com/embed/" + id},
		{"embed without scheme", "www.youtube.com/embed/" + id + "?autoplay=1"},
		{"nocookie embed", "https://www.youtube-nocookie.com/embed/" + id},
		{"shorts", "https://youtube.com/shorts/" + id},
		{"shorts without scheme", "youtube.com/shorts/" + id},
		{"surrounding spaces", "  https://youtu.be/" + id + "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.url)
			if err != nil {
				t.Fatalf("Resolve(%q) returned error: %v", tt.url, err)
			}
			if got != models.VideoReference(id) {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.url, got, id)
			}
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	inputs := []string{
		"",
		"not a url",
		"https://vimeo.com/123456",
		"https://www.youtube.com/",
		"https://www.youtube.com/channel/UC123",
		"https://www.youtube.com/watch?list=PL123",
		"https://youtu.be/",
		"https://notyoutube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=bad%20id",
	}
	for _, in := range inputs {
		if _, err := Resolve(in); !errors.Is(err, models.ErrInvalidReference) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidReference", in, err)
		}
	}
}

func TestIsMediaHost(t *testing.T) {
	cases := map[string]bool{
		"youtube.com/watch?v=x":        true,
		"https://youtu.be/x":           true,
		"https://music.youtube.com/x":  true,
		"https://vimeo.com/1":          false,
		"https://youtube.com.evil.io/": false,
	}
	for in, want := range cases {
		if got := IsMediaHost(in); got != want {
			t.Errorf("IsMediaHost(%q) = %v, want %v", in, got, want)
		}
	}
}
