// Package logic addresses the decision procedures that interpret every
// topology operation. Procedures are looked up by module, operation,
// version and mode, exchange property bags, and may be implemented in Go
// or as Lua scripts loaded from disk.
package logic
