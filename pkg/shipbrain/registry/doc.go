// Package registry provides a generic thread-safe registry that remembers
// registration order.
//
// shipbrain uses it for action handlers, brain modules, and the query and
// operator command tables, where listings and health reports should come out
// in the order things were wired:
//
//	handlers := registry.New[string, action.Handler]()
//	if err := handlers.Add("create_alert", createAlert); err != nil {
//	    return err
//	}
//
//	h, ok := handlers.Get("create_alert")
//
// Register replaces silently; Add refuses duplicates with ErrExists.
// Re-registering an existing key keeps its original position.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Range iterates over a snapshot,
// so the callback may register or delete entries.
package registry
