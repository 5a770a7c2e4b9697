package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTxHash(t *testing.T) {
	body := "ab12" + strings.Repeat("0", 59) + "f"
	cases := map[string]bool{
		"0x" + body:                  true,
		"0x" + strings.ToUpper(body): true,
		body:                         false,
		"0x" + body + "0":            false,
		"0x" + body[1:]:              false,
		"0x" + "zz" + body[2:]:       false,
		"":                           false,
		"0X" + body:                  false,
	}

	for in, want := range cases {
		assert.Equal(t, want, IsValidTxHash(in), in)
	}
}

func TestCanonicalTxHash(t *testing.T) {
	assert.Equal(t, "0xabcdef", CanonicalTxHash("0xAbCdEf"))
}
