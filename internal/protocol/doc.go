// Package protocol defines the CYD link message variants and the
// newline-delimited JSON codec that carries them over the serial stream.
package protocol
