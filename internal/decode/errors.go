// SPDX-License-Identifier: MIT
package decode

import "errors"

var (
	// ErrUnsupportedFormat is returned when no decoder is registered for a
	// format or the input is not in the format its decoder expects.
	ErrUnsupportedFormat = errors.New("decode: unsupported format")
	// ErrEmptyStream is returned when a stream decodes to zero samples.
	ErrEmptyStream = errors.New("decode: stream contains no samples")
)
