// Package module defines the module tree of a store: module configuration,
// the Module node, and the Collection that builds and maintains the tree.
//
// # Architecture
//
// A store is assembled from independently-authored modules. Each module owns
// its own state map, mutations, actions and getters, and may declare nested
// child modules. The Collection merges a root configuration into a tree and
// keeps it consistent across dynamic registration, unregistration and hot
// updates.
//
// # Paths and namespaces
//
// A module is identified by its path: the ordered keys from the root to the
// module. The namespace of a module is built by walking that path and
// appending "key/" for every module on the chain that declares Namespaced,
// so a namespace depends only on the chain of flags from root to module,
// never on siblings. Non-namespaced modules register their keys globally.
//
// # Runtime modules
//
// Modules present in the root configuration are construction-time modules
// and cannot be unregistered. Modules added later through Register are
// runtime modules and can be removed again.
//
// # Validation
//
// In dev mode the Collection validates configuration shapes on Register and
// Update: states must be maps or factories, action entries must be plain
// functions or an ActionSpec. Violations are reported as a *ValidationError
// naming the module path, the offending key and the value's type. Validation
// is skipped entirely outside dev mode.
package module
