// Package models defines the core domain models for the payment engine.
//
// The only entity is PaymentRecord: one charge against one student, scoped
// to one academy namespace. Everything else in the package is the vocabulary
// around it (Status, Method, PixData).
//
// # Design Principles
//
//  1. **Explicit tenancy**: AcademyID lives on the record and on every store
//     call; there is no implicit or global academy scope.
//  2. **Monotonic lifecycle**: status transitions only move forward through
//     the state machine; paid and cancelled are terminal.
//  3. **Money as decimal**: amounts are decimal.Decimal, never floats, so
//     sums and comparisons in stats and reports are exact.
//  4. **Avoid circular references**: records reference students and
//     subscriptions by ID strings, not pointers.
package models
