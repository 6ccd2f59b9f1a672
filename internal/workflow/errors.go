// Package workflow runs one pass of the content pipeline as a state graph:
// consume review events, generate and store a batch of ideas, render and
// link an image for every approved idea that has none, then publish linked
// ideas.
package workflow

import "errors"

// Error kinds reported by a run. Every failure wraps exactly one of these.
var (
	ErrUpstream = errors.New("upstream api error")
	ErrStore    = errors.New("store error")
	ErrUpload   = errors.New("upload error")
)
