package chat

import "testing"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  bob  ", "bob"},
		{"<b>carol</b>", "carol"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"tab\there", "tabhere"},
		{"", "guest"},
		{"<i></i>", "guest"},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz012345"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
