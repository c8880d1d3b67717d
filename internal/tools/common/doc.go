// Package common holds helpers shared by the tool packages: argument
// extraction and coercion, JSON result rendering, and the instrumented
// handler wrapper that records metrics and audit entries per tool call.
package common
