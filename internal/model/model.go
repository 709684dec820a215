// Package model defines data structures for reclass-bridge.
//
// This package contains:
//   - Project / Class / Node: the class tree describing memory layouts
//   - NodeKind registry: type-name resolution and node construction
//   - Module / Section / ProcessIdentity: target process descriptions
//   - Request / envelopes: the line protocol wire shapes
//   - Config: server configuration
package model
