package transcode

// Package transcode runs ffmpeg post-processing on downloaded media: audio
// extraction into the requested codec and container remuxing for video,
// with a full re-encode when stream copy is not possible. Progress is read
// from ffmpeg's -progress output against the ffprobe duration.
