package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Styles offered for text-to-image generation.
var Styles = []string{"Realistic", "Artistic", "Cartoon", "Sketch", "Watercolor", "Oil Painting", "Digital Art"}

const (
	MediumPhotography = "photography"
	MediumArt         = "art"
)

// ApplyStyle appends the style hint to the prompt. Realistic adds nothing.
func ApplyStyle(prompt, style string) string {
	prompt = strings.TrimSpace(prompt)
	style = strings.TrimSpace(style)
	if style == "" || strings.EqualFold(style, "Realistic") {
		return prompt
	}
	return fmt.Sprintf("%s, in %s style", prompt, cases.Lower(language.English).String(style))
}

// MediumForStyle maps a style to the backend medium.
func MediumForStyle(style string) string {
	if style == "" || strings.EqualFold(style, "Realistic") {
		return MediumPhotography
	}
	return MediumArt
}

// KnownStyle reports whether style is one of Styles, ignoring case.
func KnownStyle(style string) bool {
	if style == "" {
		return true
	}
	for _, s := range Styles {
		if strings.EqualFold(s, style) {
			return true
		}
	}
	return false
}
