// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrNoSampleLoaded is returned by operations that need a loaded sample.
	ErrNoSampleLoaded = errors.New("audio: no sample loaded")
	// ErrEmptySample is returned when loading a buffer without samples.
	ErrEmptySample = errors.New("audio: sample has no audio")
	// ErrAlreadyPlaying is returned when a preview is started while another
	// is still running.
	ErrAlreadyPlaying = errors.New("audio: preview already playing")
)
