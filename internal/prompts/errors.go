package prompts

import "errors"

var ErrEmptyIdea = errors.New("idea text is empty")
