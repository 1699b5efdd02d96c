package internal

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FastHash is a high-performance non-cryptographic hash function used for
// identifiers that only need to be stable and cheap, like batch run IDs in
// logs and metrics. Never use this where an attacker choosing collisions
// would matter.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}
