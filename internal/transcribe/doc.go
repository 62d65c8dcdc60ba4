// Package transcribe provides the HTTP client for the external speech-to-text
// service. It bounds in-flight requests with a semaphore, retries transient
// failures with exponential backoff, and caps the number of segments consumed
// from a single response.
package transcribe
