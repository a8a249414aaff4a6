// Package metrics defines the observability hooks the state core reports
// through. The Recorder interface decouples the core from any concrete
// backend; components default to NoopRecorder so metrics stay optional, and a
// Prometheus implementation can be injected when a registry is configured.
package metrics
