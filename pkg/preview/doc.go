// Package preview owns the preview surface of an editing session.
//
// Work is split in two steps. Prepare fetches, decodes and scales an image
// into a complete Frame without touching the surface; Commit swaps that frame
// in as the visible one. Callers run Prepare outside any lock and Commit from
// a single writer, so a half-drawn or blank frame is never observable.
package preview
