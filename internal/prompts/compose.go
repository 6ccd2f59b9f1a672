// Package prompts holds the hardcoded prompt text for each model call in a
// run and composes it with the configured brief.
package prompts

import (
	"strconv"
	"strings"
)

// Brief carries the values interpolated into prompt placeholders.
type Brief struct {
	Topic    string
	Audience string
	Style    string
	// Hashtags are appended to published captions, space or comma separated,
	// with or without the leading '#'.
	Hashtags string
}

// Ideas builds the prompt asking for count ideas.
func Ideas(b Brief, count int) string {
	r := strings.NewReplacer(
		"{{topic}}", b.Topic,
		"{{audience}}", b.Audience,
		"{{count}}", strconv.Itoa(count),
	)

	var sb strings.Builder
	sb.WriteString(r.Replace(ideasInstructions))
	sb.WriteString("\n\n")
	sb.WriteString(r.Replace(ideasSpec))
	return sb.String()
}

// Image builds the prompt that renders one idea.
func Image(b Brief, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", ErrEmptyIdea
	}

	r := strings.NewReplacer(
		"{{idea}}", idea,
		"{{style}}", b.Style,
	)
	return r.Replace(imageInstructions), nil
}

// Caption builds the post caption for an idea: the idea text, then the
// brief's hashtags on their own line.
func Caption(b Brief, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", ErrEmptyIdea
	}

	tags := hashtags(b.Hashtags)
	if len(tags) == 0 {
		return idea, nil
	}
	return idea + "\n\n" + strings.Join(tags, " "), nil
}

func hashtags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimLeft(f, "#")
		if f == "" {
			continue
		}
		tags = append(tags, "#"+f)
	}
	return tags
}
