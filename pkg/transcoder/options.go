package transcoder

// Options contains settings for the MP3 transcoder.
type Options struct {
	// FFmpegBinary is the ffmpeg executable. Defaults to "ffmpeg".
	FFmpegBinary string
	// FFprobeBinary is used to read the input duration. Defaults to "ffprobe".
	FFprobeBinary string
	// AudioBitrate is passed as -ab. Defaults to "192k".
	AudioBitrate string
	// SampleRate is passed as -ar. Defaults to 44100.
	SampleRate int
	// ExtraParams are appended before the output path.
	ExtraParams []string
}

func (o Options) withDefaults() Options {
	if o.FFmpegBinary == "" {
		o.FFmpegBinary = "ffmpeg"
	}
	if o.FFprobeBinary == "" {
		o.FFprobeBinary = "ffprobe"
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = "192k"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	return o
}
