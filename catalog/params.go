package catalog

// Fixed values carried by the catalog commands. They describe the test
// stream the client manages; only the license key and input URI vary.
const (
	testStreamID        = "test_1"
	testFeedbackDir     = "~/test/1"
	testLogLevel        = 6
	testOutputURI       = "tcp://localhost:1935"
	testTimeshiftDir    = "/var/www/html/live/14"
	stopServiceDelay    = 1
	inputURLID          = 170
	outputURLID         = 80
	timeshiftInputURLID = 1
)

// Stream types understood by the daemon.
const (
	streamTypeRelay     = 0
	streamTypeEncode    = 1
	streamTypeTimeshift = 3
)

var prepareDirectories = struct {
	Feedback    string
	Timeshifts  string
	HLS         string
	Playlists   string
	DVB         string
	CaptureCard string
}{
	Feedback:    "~/streamer/feedback",
	Timeshifts:  "~/streamer/timeshifts",
	HLS:         "~/streamer/hls",
	Playlists:   "~/streamer/playlists",
	DVB:         "~/streamer/dvb",
	CaptureCard: "~/streamer/capture_card",
}

type licenseParams struct {
	LicenseKey string `json:"license_key"`
}

type stopServiceParams struct {
	LicenseKey string `json:"license_key"`
	Delay      int    `json:"delay"`
}

type prepareServiceParams struct {
	LicenseKey           string `json:"license_key"`
	FeedbackDirectory    string `json:"feedback_directory"`
	TimeshiftsDirectory  string `json:"timeshifts_directory"`
	HLSDirectory         string `json:"hls_directory"`
	PlaylistsDirectory   string `json:"playlists_directory"`
	DVBDirectory         string `json:"dvb_directory"`
	CaptureCardDirectory string `json:"capture_card_directory"`
}

type streamParams struct {
	LicenseKey string `json:"license_key"`
	ID         string `json:"id"`
}

type startStreamParams struct {
	LicenseKey string `json:"license_key"`
	Config     any    `json:"config"`
}

type url struct {
	ID  int    `json:"id"`
	URI string `json:"uri"`
}

type urls struct {
	URLs []url `json:"urls"`
}

// encodeConfig transcodes the input: codec, bitrate and volume are explicit.
type encodeConfig struct {
	ID           string  `json:"id"`
	FeedbackDir  string  `json:"feedback_dir"`
	LogLevel     int     `json:"log_level"`
	AudioBitrate int     `json:"audio_bitrate"`
	AudioCodec   string  `json:"audio_codec"`
	DelayTime    int     `json:"delay_time"`
	Input        urls    `json:"input"`
	Output       urls    `json:"output"`
	Type         int     `json:"type"`
	VideoBitrate int     `json:"video_bitrate"`
	VideoCodec   string  `json:"video_codec"`
	Volume       float64 `json:"volume"`
}

// relayConfig passes the input through unchanged.
type relayConfig struct {
	ID          string `json:"id"`
	FeedbackDir string `json:"feedback_dir"`
	LogLevel    int    `json:"log_level"`
	Input       urls   `json:"input"`
	Output      urls   `json:"output"`
	Type        int    `json:"type"`
}

// timeshiftConfig records the input into a timeshift directory; it has no
// output URLs.
type timeshiftConfig struct {
	ID           string `json:"id"`
	FeedbackDir  string `json:"feedback_dir"`
	LogLevel     int    `json:"log_level"`
	Input        urls   `json:"input"`
	TimeshiftDir string `json:"timeshift_dir"`
	Type         int    `json:"type"`
}

func encodeStreamConfig(inputURI string) encodeConfig {
	return encodeConfig{
		ID:           testStreamID,
		FeedbackDir:  testFeedbackDir,
		LogLevel:     testLogLevel,
		AudioBitrate: 92,
		AudioCodec:   "faac",
		DelayTime:    0,
		Input:        urls{URLs: []url{{ID: inputURLID, URI: inputURI}}},
		Output:       urls{URLs: []url{{ID: outputURLID, URI: testOutputURI}}},
		Type:         streamTypeEncode,
		VideoBitrate: 1700,
		VideoCodec:   "x264enc",
		Volume:       1.0,
	}
}

func relayStreamConfig(inputURI string) relayConfig {
	return relayConfig{
		ID:          testStreamID,
		FeedbackDir: testFeedbackDir,
		LogLevel:    testLogLevel,
		Input:       urls{URLs: []url{{ID: inputURLID, URI: inputURI}}},
		Output:      urls{URLs: []url{{ID: outputURLID, URI: testOutputURI}}},
		Type:        streamTypeRelay,
	}
}

func timeshiftStreamConfig(inputURI string) timeshiftConfig {
	return timeshiftConfig{
		ID:           testStreamID,
		FeedbackDir:  testFeedbackDir,
		LogLevel:     testLogLevel,
		Input:        urls{URLs: []url{{ID: timeshiftInputURLID, URI: inputURI}}},
		TimeshiftDir: testTimeshiftDir,
		Type:         streamTypeTimeshift,
	}
}
