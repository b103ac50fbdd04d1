/*
Package ports defines the driven ports (interfaces) of the RetroFX editor.

These interfaces decouple the orchestration core from the external services it
talks to and from the storage backing the session manager.

# Key Interfaces

  - UploadGateway: Sends raw image bytes, returns an opaque ImageRef.
  - ProcessingGateway: Sends an ImageRef plus the effect instance, returns a renderable result.
  - ImageFetcher: Downloads source and processed image bytes for the preview.
  - SessionStore: Persists session snapshots for listing and inspection.
*/
package ports
