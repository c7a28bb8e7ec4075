// Package api exposes the download queue over HTTP for the browser extension
// and the command line client.
package api
