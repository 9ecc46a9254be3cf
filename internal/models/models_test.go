package models

import "testing"

func TestIsSupportedLanguage(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ar", true},
		{"en", true},
		{"fr", false},
		{"AR", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSupportedLanguage(tt.code); got != tt.want {
			t.Errorf("IsSupportedLanguage(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestArtifactKindValid(t *testing.T) {
	for _, k := range []ArtifactKind{ArtifactIDML, ArtifactWord} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	for _, k := range []ArtifactKind{"", "pdf", "IDML"} {
		if k.Valid() {
			t.Errorf("%q should be invalid", k)
		}
	}
}

func TestDefaultLanguageFirst(t *testing.T) {
	if len(Languages) == 0 || Languages[0].Code != "ar" {
		t.Fatalf("Languages = %+v, want ar first", Languages)
	}
}
