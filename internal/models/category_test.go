package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Roses & Blooms!":   "roses-blooms",
		"  Holiday   2024 ": "holiday-2024",
		"--already-slugged": "already-slugged",
		"Ünïcode Ñame":      "n-code-ame",
		"!!!":               "",
	}
	for in, want := range tests {
		got := Slugify(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, Slugify(got), "slugifying %q twice changes it", in)
	}
}
