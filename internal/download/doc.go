package download

// Package download implements the bounded worker pool and the extraction
// engine built on top of yt-dlp (via github.com/lrstanley/go-ytdlp). The pool
// admits queued tasks in FIFO order into at most K slots, runs each job on its
// own goroutine, applies progress events to the registry and guarantees that
// a cancelled job gives its slot back within a bounded grace period.
