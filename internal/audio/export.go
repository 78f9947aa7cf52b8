// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"

	"featidx/internal/buffer"
	applog "featidx/internal/log"

	"github.com/go-audio/wav"
)

// Export writes buf, or the current audio when buf is nil, to path as a PCM
// WAV file at the configured bit depth and the loaded sample rate.
func (e *Engine) Export(path string, buf *buffer.Buffer) error {
	if buf == nil {
		var err error
		if buf, err = e.Buffer(); err != nil {
			return err
		}
	}
	sampleRate := int(e.SampleRate())
	if sampleRate == 0 {
		return ErrNoSampleLoaded
	}
	bitDepth := e.config.Export.BitDepth

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, buf.NumChannels(), 1)
	if err := encoder.Write(buf.ToIntBuffer(sampleRate, bitDepth)); err != nil {
		file.Close()
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	applog.Infof("audio: exported %d samples to %s (%d-bit, %d Hz)",
		buf.NumSamples(), path, bitDepth, sampleRate)
	return nil
}
