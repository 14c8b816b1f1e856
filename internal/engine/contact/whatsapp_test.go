package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhatsAppLink(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		cc    string
		want  string
		ok    bool
	}{
		{"mobile with spaces", "9 1234 5678", "", "https://wa.me/56912345678", true},
		{"already international", "+56 9 1234 5678", "", "https://wa.me/56912345678", true},
		{"leading zeros", "00 9 8765 4321", "", "https://wa.me/56987654321", true},
		{"landline", "(32) 212 3456", "56", "https://wa.me/56322123456", true},
		{"long foreign number kept", "+54 11 1234 56789", "56", "https://wa.me/5411123456789", true},
		{"other default country", "612345678", "+34", "https://wa.me/34612345678", true},
		{"empty", "", "", "", false},
		{"no digits", "sin teléfono", "", "", false},
		{"only zeros", "000", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WhatsAppLink(tt.phone, tt.cc)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
