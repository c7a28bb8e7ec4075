package platform

// Package platform contains OS integration and external tooling glue:
// filesystem helpers and filename sanitizing, tool discovery, URL policy,
// playlist expansion via github.com/ytget/ytdlp/v2 and the PID file.
