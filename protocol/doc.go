// Package protocol defines the data model shared by qtrix components: queues
// and their weights, override units and claims, matrix rows and entries,
// known hosts, and the errors surfaced by the allocation engine.
//
// Types which may be supplied by users implement Validator, and return
// *ValidationError describing the offending field.
package protocol
