package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Gómez Morín", "gomez morin"},
		{"  GOMEZ   MORIN ", "gomez morin"},
		{"Centrito Valle", "centrito valle"},
		{"Ñuñoa", "nunoa"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"sucursal", "gomez", "morin", "2"}, Tokens("Sucursal Gómez-Morín #2"))
	assert.Empty(t, Tokens(" - "))
}

func TestSplitCode(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		wantCode int
		wantName string
		wantOK   bool
	}{
		{"code and name", "35 - Riverside", 35, "riverside", true},
		{"code only", "35", 35, "", true},
		{"name only", "Riverside", 0, "riverside", false},
		{"dotted code", "12. Centrito Valle", 12, "centrito valle", true},
		{"parenthesised", "7) Cumbres", 7, "cumbres", true},
		{"digits glued to name", "7eleven", 0, "7eleven", false},
		{"empty", "", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name, ok := SplitCode(tt.label)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
