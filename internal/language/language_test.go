package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"en", "en", false},
		{"EN", "en", false},
		{"en-us", "en-US", false},
		{" es ", "es", false},
		{"multi", "multi", false},
		{"MULTI", "multi", false},
		{"", "", true},
		{"not a language", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestToISO3(t *testing.T) {
	tests := map[string]string{
		"en":    "eng",
		"de":    "deu",
		"en-GB": "eng",
		"multi": "und",
		"":      "und",
		"?? ":   "und",
	}
	for input, want := range tests {
		if got := ToISO3(input); got != want {
			t.Errorf("ToISO3(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"en":    "English",
		"fr":    "French",
		"multi": "Multilingual",
		"":      "Unknown",
	}
	for input, want := range tests {
		if got := DisplayName(input); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}
