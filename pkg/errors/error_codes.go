package errors

// Error codes, grouped by component.
const (
	// Validation (1000-1099)
	ErrNoInput          = 1000
	ErrEmptyURL         = 1001
	ErrInvalidConfig    = 1002
	ErrInvalidInputFile = 1003

	// Extraction (1100-1199)
	ErrExtractorUnavailable = 1100
	ErrMetadataFailed       = 1101
	ErrAppOnlyContent       = 1102

	// Download (1200-1299)
	ErrDownloadStart     = 1200
	ErrDownloadStream    = 1201
	ErrDownloadTruncated = 1202
	ErrDownloadTimeout   = 1203

	// Transcoding (1300-1399)
	ErrFFmpegUnavailable = 1300
	ErrFFmpegStart       = 1301
	ErrFFmpegFailed      = 1302

	// System (1400-1499)
	ErrOutputDirectoryCreationFailed = 1400
	ErrOutputFileCreationFailed      = 1401
	ErrLogFileCreationFailed         = 1402
	ErrConfigWriteFailed             = 1403

	// Cancellation (1500-1599)
	ErrCanceled = 1500
)
