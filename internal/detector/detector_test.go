package detector

import (
	"testing"
)

func TestDetector_DetectISO(t *testing.T) {
	d := New()

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"empty text", "", "", false},
		{"korean answer", "프로젝트에서 상태 관리를 개선하기 위해 리덕스를 도입했습니다.", "ko", true},
		{"english answer", "I introduced a caching layer to reduce database load.", "en", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.DetectISO(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("DetectISO(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("DetectISO(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
