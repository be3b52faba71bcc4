// Package rtti describes script types for the managed heap.
//
// A Registry is the ordered set of types a compiled script declares. Type id 0
// is reserved and means "untyped"; the type at Types()[i] has id i+1. The heap
// consults the registry for two things only: which byte offsets of a struct
// instance hold managed handles (ManagedOffsets), and whether a type is itself
// a managed type so that arrays of it store handles.
//
// Registries are built with a Builder, either by hand or from WIT records
// (Builder.FromWIT), and frozen before objects are created. A frozen registry
// is read-only and safe to share.
//
// Save data carries the saving script's type table (WriteTable). On load,
// BuildRemap matches every saved type against the current registry by name
// and layout size and produces a Remap from old to new ids.
package rtti
