package objectstore

import (
	"testing"
	"time"
)

func TestBuildObjectKey(t *testing.T) {
	ts := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	got := BuildObjectKey("0b5c1e2f-aaaa-bbbb-cccc-000000000001", ".jpg", ts)
	want := "images/2026/02/0b5c1e2f-aaaa-bbbb-cccc-000000000001.jpg"
	if got != want {
		t.Fatalf("BuildObjectKey = %q, want %q", got, want)
	}

	// extension without dot is normalized
	got = BuildObjectKey("abc", "png", ts)
	if got != "images/2026/02/abc.png" {
		t.Fatalf("BuildObjectKey = %q", got)
	}
}

func TestContentTypeForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".gif", "image/gif"},
		{".webp", "image/webp"},
		{".avif", "image/avif"},
		{".bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeForExt(tt.ext); got != tt.want {
			t.Errorf("ContentTypeForExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
