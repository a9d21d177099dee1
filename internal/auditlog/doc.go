// Package auditlog intercepts the sandbox console.
//
// Every line is prefixed with the application name and an ISO-8601 timestamp,
// written synchronously to the real console and appended asynchronously to a
// persistent log file. Append failures are fatal by default: a run whose audit
// trail cannot be written is not allowed to continue.
package auditlog
