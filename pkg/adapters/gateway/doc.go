// Package gateway talks to the image service over HTTP.
//
// Client implements ports.UploadGateway, ports.ProcessingGateway and
// ports.ImageFetcher against the service's /upload, /process and static
// routes. Processing calls go through a circuit breaker so a dead service
// fails fast instead of piling up in-flight submissions. Nothing is retried.
package gateway
