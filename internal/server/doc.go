// Package server implements the BeKord real-time gateway core: the
// connection registry with presence tracking, topic subscriptions, the
// fan-out engine, and per-connection session lifecycle.
//
// The implementation is organized into specialized files for the hub,
// subscriptions, fan-out, sessions, protocol types, configuration, and the
// HTTP surface to keep the codebase maintainable and testable as the
// project grows.
package server
