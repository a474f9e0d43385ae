// Package orchestrator runs topology operations. Every operation follows
// the same workflow: validate the request, load the stored Desired and
// Observed state, hand the merged parameters to a logic procedure,
// persist the outcome, respond, and, when the procedure defers
// completion, finish the work on a bounded pool of background workers.
//
// Operations differ only in their OperationSpec: required fields, how
// the primary key is formed, which actions reach the Observed partition,
// which related entities are loaded, and which response sections are
// returned.
package orchestrator
