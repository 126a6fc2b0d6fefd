package esdecoder

type Stats struct {
	BytesSubmitted  uint64 `json:"bytes_submitted"`
	BytesDropped    uint64 `json:"bytes_dropped"`
	ChunksSubmitted uint64 `json:"chunks_submitted"`

	// Queue depths, advisory.
	QueuedBytes  uint64 `json:"queued_bytes"`
	QueuedChunks uint64 `json:"queued_chunks"`
	QueuedFrames uint64 `json:"queued_frames"`

	AccessUnitsParsed   uint64 `json:"access_units_parsed"`
	AccessUnitsSent     uint64 `json:"access_units_sent"`
	AccessUnitsRejected uint64 `json:"access_units_rejected"`
	SendRetries         uint64 `json:"send_retries"`

	FramesDecoded    uint64 `json:"frames_decoded"`
	FramesDiscarded  uint64 `json:"frames_discarded"`
	FramesDropped    uint64 `json:"frames_dropped"`
	ConversionErrors uint64 `json:"conversion_errors"`

	// StreamsFlushed is the amount of processed Flush requests.
	StreamsFlushed uint64 `json:"streams_flushed"`

	EngineFailed bool `json:"engine_failed"`
}
