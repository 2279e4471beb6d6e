package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+79123456789", "+79123456789"},
		{"89123456789", "+79123456789"},
		{"8 (912) 345-67-89", "+79123456789"},
		{"9123456789", "+79123456789"},
		{"not-a-phone", ""},
		{"", ""},
		{"123", ""},
	}

	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
