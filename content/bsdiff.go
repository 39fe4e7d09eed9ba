package content

import (
	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

// BSDiff computes a compact binary patch that transforms base into target.
func BSDiff(base, target []byte) ([]byte, error) {
	return bsdiff.Bytes(base, target)
}

// BSPatch applies a patch produced by BSDiff to base, returning the target
// bytes. A corrupt patch or mismatched base surfaces as an error.
func BSPatch(base, patch []byte) ([]byte, error) {
	return bspatch.Bytes(base, patch)
}
