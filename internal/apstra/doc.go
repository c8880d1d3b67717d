// Package apstra is a minimal client for the Apstra fabric-manager REST
// API. It exchanges credentials for an AuthToken at /api/user/login and
// performs exactly one HTTP round trip per operation. No call is ever
// retried; upstream failures are surfaced as typed errors.
package apstra
