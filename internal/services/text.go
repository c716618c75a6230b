package services

import (
	"fmt"
	"strings"

	"github.com/jaevor/go-nanoid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	plainText = bluemonday.StrictPolicy()
	richText  = bluemonday.UGCPolicy()
)

// codeAlphabet leaves out characters that are easy to misread when a code is
// typed by hand.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// cleanLine strips all markup from single-line input such as titles and names.
func cleanLine(input string) string {
	return strings.TrimSpace(plainText.Sanitize(input))
}

// cleanText keeps safe formatting in longer free text such as bios.
func cleanText(input string) string {
	return strings.TrimSpace(richText.Sanitize(input))
}

// NewCodeGenerator returns a generator of random invite codes of the given length.
func NewCodeGenerator(length int) (func() string, error) {
	generate, err := nanoid.CustomASCII(codeAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("creating code generator: %w", err)
	}
	return generate, nil
}
