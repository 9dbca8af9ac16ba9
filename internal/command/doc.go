// Package command maps inbound link command names to host actions and
// produces acknowledgments. Destructive actions run through a
// two-phase confirm-before-execute workflow with an expiring pending
// table.
package command
