// Package layout computes in-heap struct layouts for script types.
//
// Rules follow natural alignment:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records: fields laid out sequentially with padding for alignment,
//     total size padded to the largest field alignment
//   - Strings, lists and resource handles: a single 4-byte managed handle,
//     the contents live in their own heap objects
//   - Variants and options: discriminant followed by the largest payload
//
// This package is internal to rtti.
package layout
