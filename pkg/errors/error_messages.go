package errors

// ErrorMessages holds a user-facing explanation for each error code.
var ErrorMessages = map[int]string{
	ErrNoInput:          "Please enter at least one URL.",
	ErrEmptyURL:         "A line has a name but no URL.",
	ErrInvalidConfig:    "The configuration file could not be read.",
	ErrInvalidInputFile: "The task list file could not be read.",

	ErrExtractorUnavailable: "yt-dlp was not found. Install it or point --yt-dlp at the binary.",
	ErrMetadataFailed:       "The video information could not be retrieved.",
	ErrAppOnlyContent: "This video is restricted to the YouTube app. " +
		"Supplying a cookies.txt exported from a logged-in browser session may make it downloadable.",

	ErrDownloadStart:     "The download could not be started.",
	ErrDownloadStream:    "The download was interrupted.",
	ErrDownloadTruncated: "The downloaded file is much smaller than expected.",
	ErrDownloadTimeout:   "The download took too long and was stopped.",

	ErrFFmpegUnavailable: "ffmpeg was not found. Install it or point --ffmpeg at the binary.",
	ErrFFmpegStart:       "ffmpeg could not be started.",
	ErrFFmpegFailed:      "ffmpeg failed to convert the file.",

	ErrOutputDirectoryCreationFailed: "The output directory could not be created. Check permissions.",
	ErrOutputFileCreationFailed:      "The output file could not be created. Check permissions and free space.",
	ErrLogFileCreationFailed:         "The run log could not be created.",
	ErrConfigWriteFailed:             "The configuration file could not be written.",

	ErrCanceled: "The batch was canceled before this item finished.",
}

// GetErrorMessage returns the standard message for an error code.
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "Unknown error."
}
