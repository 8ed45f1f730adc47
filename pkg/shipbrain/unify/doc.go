// Package unify reconciles tracking and order records into unified
// shipments.
//
// The pieces are used together by the brain but stand alone:
//
//   - InferStatus maps free-text carrier descriptions to a model.Status.
//   - Matcher pairs tracking records with order records.
//   - PriorityTable and Resolve pick the winning value for each field when
//     sources disagree.
//   - Unifier builds or merges a model.UnifiedShipment and reports what changed.
//
// Every geographic comparison goes through NormalizeCity first.
package unify
