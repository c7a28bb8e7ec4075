package model

// Package model defines the domain data structures shared by the queue, the
// worker pool, the HTTP gateway and the dashboard: download tasks, request
// parameters, media kinds and the status enum. Records are plain values so
// the registry can hand out copies.
