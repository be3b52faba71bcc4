// Package gfxdef converts between the transparency scales found in script
// objects.
//
// Scripts see transparency as a percentage: 0 is opaque, 100 is invisible.
// Older object structs store it in a single byte where 0 still means opaque
// and 255 invisible, while every value in between is an inverted 0-250 alpha.
// Renderers use a plain 0-255 alpha.
package gfxdef

// Trans100ToAlpha255 converts a 0-100 transparency to a 0-255 alpha.
func Trans100ToAlpha255(trans int) int {
	return ((100 - trans) * 255) / 100
}

// Alpha255ToTrans100 converts a 0-255 alpha to a 0-100 transparency.
func Alpha255ToTrans100(alpha int) int {
	return 100 - ((alpha * 100) / 255)
}

// Trans100ToAlpha250 converts a 0-100 transparency to a 0-250 alpha.
// Multiples of 10 convert back exactly.
func Trans100ToAlpha250(trans int) int {
	return ((100 - trans) * 25) / 10
}

// Alpha250ToTrans100 converts a 0-250 alpha to a 0-100 transparency.
func Alpha250ToTrans100(alpha int) int {
	return 100 - ((alpha * 10) / 25)
}

// Trans100ToLegacyTrans255 converts a 0-100 transparency to the legacy byte.
func Trans100ToLegacyTrans255(trans int) int {
	switch trans {
	case 0:
		return 0
	case 100:
		return 255
	default:
		return Trans100ToAlpha250(trans)
	}
}

// LegacyTrans255ToTrans100 converts the legacy byte to a 0-100 transparency.
func LegacyTrans255ToTrans100(legacy int) int {
	switch legacy {
	case 0:
		return 0
	case 255:
		return 100
	default:
		return Alpha250ToTrans100(legacy)
	}
}

// LegacyTrans255ToAlpha255 converts the legacy byte to a 0-255 alpha.
func LegacyTrans255ToAlpha255(legacy int) int {
	switch legacy {
	case 0:
		return 255
	case 255:
		return 0
	default:
		return legacy
	}
}

// Alpha255ToLegacyTrans255 converts a 0-255 alpha to the legacy byte.
func Alpha255ToLegacyTrans255(alpha int) int {
	switch alpha {
	case 255:
		return 0
	case 0:
		return 255
	default:
		return alpha
	}
}
