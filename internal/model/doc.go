// Package model tracks the readiness of the external model services.
// Each service is probed in the background until it reports healthy; request
// handlers consult the readiness state and return a retryable "not ready"
// status instead of blocking while models load.
package model
