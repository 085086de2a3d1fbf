package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Nasi Goreng", "nasi-goreng"},
		{"collapses punctuation", "Es Teh (Manis)!", "es-teh-manis"},
		{"strips diacritics", "Café Crème", "cafe-creme"},
		{"trims hyphens", "  --Soto Ayam--  ", "soto-ayam"},
		{"keeps digits", "Paket 2 Orang", "paket-2-orang"},
		{"collapses runs", "A   B", "a-b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}
