package pipeline

import (
	"sync/atomic"

	"github.com/xaionaro-go/esdecoder"
)

type statistics struct {
	BytesSubmitted  atomic.Uint64
	BytesDropped    atomic.Uint64
	ChunksSubmitted atomic.Uint64

	AccessUnitsParsed   atomic.Uint64
	AccessUnitsSent     atomic.Uint64
	AccessUnitsRejected atomic.Uint64
	SendRetries         atomic.Uint64

	FramesDecoded    atomic.Uint64
	FramesDiscarded  atomic.Uint64
	FramesDropped    atomic.Uint64
	ConversionErrors atomic.Uint64
	StreamsFlushed   atomic.Uint64

	EngineFailed atomic.Bool
}

func (stats *statistics) Convert() esdecoder.Stats {
	return esdecoder.Stats{
		BytesSubmitted:      stats.BytesSubmitted.Load(),
		BytesDropped:        stats.BytesDropped.Load(),
		ChunksSubmitted:     stats.ChunksSubmitted.Load(),
		AccessUnitsParsed:   stats.AccessUnitsParsed.Load(),
		AccessUnitsSent:     stats.AccessUnitsSent.Load(),
		AccessUnitsRejected: stats.AccessUnitsRejected.Load(),
		SendRetries:         stats.SendRetries.Load(),
		FramesDecoded:       stats.FramesDecoded.Load(),
		FramesDiscarded:     stats.FramesDiscarded.Load(),
		FramesDropped:       stats.FramesDropped.Load(),
		ConversionErrors:    stats.ConversionErrors.Load(),
		StreamsFlushed:      stats.StreamsFlushed.Load(),
		EngineFailed:        stats.EngineFailed.Load(),
	}
}
