// Package dashboard renders a live terminal view of the download queue.
package dashboard
