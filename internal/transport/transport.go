// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"time"

	"featidx/internal/feature"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Transport defines a generic interface for sending analysis results to
// observers. Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}

// StatisticsMessage is the JSON envelope for feature statistics updates.
type StatisticsMessage struct {
	Type       string             `json:"type"`
	Source     string             `json:"source"`
	SampleRate float64            `json:"sample_rate"`
	Timestamp  time.Time          `json:"timestamp"`
	Stats      feature.Statistics `json:"stats"`
}

// NewStatisticsMessage wraps stats for sending.
func NewStatisticsMessage(source string, sampleRate float64, stats feature.Statistics) StatisticsMessage {
	return StatisticsMessage{
		Type:       "statistics",
		Source:     source,
		SampleRate: sampleRate,
		Timestamp:  time.Now().UTC(),
		Stats:      stats,
	}
}

// RegionsMessage lists the modified regions of the feature data.
type RegionsMessage struct {
	Type    string           `json:"type"`
	Regions []feature.Region `json:"regions"`
}

// NewRegionsMessage wraps regions for sending.
func NewRegionsMessage(regions []feature.Region) RegionsMessage {
	return RegionsMessage{Type: "regions", Regions: regions}
}
