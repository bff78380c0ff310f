package ws

// Inbound payload shapes, one struct per message type (§6). Fields absent
// from a given type's payload are simply never populated by decode.

type subtitlePayload struct {
	Text       string `json:"text"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	PositionMs int64  `json:"position_ms"`
	ContentID  string `json:"content_id"`
}

type playbackPayload struct {
	State      string `json:"state"`
	PositionMs int64  `json:"position_ms"`
	ContentID  string `json:"content_id"`
}

type positionPayload struct {
	PositionMs int64 `json:"position_ms"`
}

type setModePayload struct {
	Mode    string `json:"mode"`
	CueFile string `json:"cueFile"`
}

type loadCueFilePayload struct {
	ID string `json:"id"`
}

type searchCueFilesPayload struct {
	Query string `json:"query"`
}

type recordingTitlePayload struct {
	Title     string `json:"title"`
	ContentID string `json:"content_id"`
}

type resumeRecordingPayload struct {
	PositionMs int64 `json:"position_ms"`
}

type startPrecisionPayload struct {
	Title                string  `json:"title"`
	ContentID            string  `json:"content_id"`
	PlaybackSpeed        float64 `json:"playback_speed"`
	UseVirtualCable      bool    `json:"use_virtual_cable"`
	WhisperModel         string  `json:"whisper_model"`
	VideoStartPositionMs int64   `json:"video_start_position_ms"`
}

type stopPrecisionPayload struct {
	RecordingID string `json:"recording_id"`
	Language    string `json:"language"`
}
