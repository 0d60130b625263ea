package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "comparison and ampersand kept", input: "it's 5 > 3 & true", want: "it's 5 > 3 & true"},
		{name: "heart is not a tag", input: "<3 this", want: "<3 this"},
		{name: "quotes kept", input: `a "quoted" word`, want: `a "quoted" word`},
		{name: "tags stripped", input: "<b>bold</b> move", want: "bold move"},
		{name: "script dropped with its body", input: "hi<script>alert(1)</script>", want: "hi"},
		{name: "trimmed", input: "  spaced \n", want: "spaced"},
		{name: "only markup", input: "<img src=x>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.input))
		})
	}
}
