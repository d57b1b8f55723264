// Package catalog holds the static, purely descriptive registry of known
// worker tasks. It is metadata for API consumers: task names flowing through
// the queue and dispatcher are opaque strings and are never checked against
// this registry.
package catalog

// Entry describes one named task.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var categories = []string{"acquisition", "video", "audio", "binary"}

var tasks = map[string][]Entry{
	"acquisition": {
		{Name: "download_file", Description: "Download file from URL"},
		{Name: "validate_checksum", Description: "Validate file checksum"},
		{Name: "probe_media_file", Description: "Probe media file details"},
		{Name: "split_file_chunks", Description: "Split file into chunks"},
		{Name: "merge_file_chunks", Description: "Merge file chunks"},
		{Name: "sanitize_filename", Description: "Sanitize filename"},
		{Name: "create_file_manifest", Description: "Create file manifest"},
		{Name: "verify_file_integrity", Description: "Verify file integrity"},
	},
	"video": {
		{Name: "transcode_h264_to_h265", Description: "Convert H.264 to H.265"},
		{Name: "resize_to_720p", Description: "Resize video to 720p"},
		{Name: "get_video_info", Description: "Get video information"},
		{Name: "extract_frames", Description: "Extract frames as images"},
		{Name: "extract_thumbnails", Description: "Extract thumbnail images"},
		{Name: "create_animated_gif", Description: "Create animated GIF"},
		{Name: "detect_scene_cuts", Description: "Detect scene changes"},
		{Name: "apply_watermark", Description: "Apply watermark overlay"},
		{Name: "extract_key_frame", Description: "Extract single frame"},
	},
	"audio": {
		{Name: "resample_audio", Description: "Resample to different rate"},
		{Name: "extract_audio_from_video", Description: "Extract audio from video"},
		{Name: "get_audio_info", Description: "Get audio information"},
		{Name: "generate_waveform_json", Description: "Generate waveform data"},
		{Name: "mix_audio_tracks", Description: "Mix audio tracks"},
	},
	"binary": {
		{Name: "calculate_sha256", Description: "Calculate SHA-256 hash"},
		{Name: "compress_archive", Description: "Compress file"},
		{Name: "extract_exif_metadata", Description: "Extract EXIF metadata"},
		{Name: "purge_original_file", Description: "Delete original file"},
		{Name: "validate_format_compliance", Description: "Validate file format"},
		{Name: "chain_job_trigger", Description: "Trigger next job"},
		{Name: "report_metrics", Description: "Report job metrics"},
	},
}

// Tasks returns the full category -> entries mapping. Callers must not
// mutate the returned slices.
func Tasks() map[string][]Entry {
	return tasks
}

// Categories returns the category names in display order.
func Categories() []string {
	return categories
}
