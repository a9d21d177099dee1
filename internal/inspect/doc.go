// Package inspect classifies and renders values exported by sandboxed code.
//
// All reads go through a Reflector that captured its intrinsics before the
// untrusted module ran: property values are read from descriptors, so
// getters never fire, and callables are described by their declared
// parameter count and source text without being invoked.
package inspect
