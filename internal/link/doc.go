// Package link layers connection management on top of a transport: a
// connect/disconnect state machine with automatic retry, and a session
// pairing one reader loop and one writer loop around it.
package link
