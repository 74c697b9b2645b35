package deps

// MediaRequirements lists the transcoder binaries used for audio extraction,
// upload probing, and caption burn-in.
func MediaRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for audio extraction and caption burn-in",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Required for upload validation",
		},
	}
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
