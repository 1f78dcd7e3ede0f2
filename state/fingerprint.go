package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns a stable hex digest of an action's parameters, used
// as the cache-key component for memoized results. Equal parameter maps
// produce equal fingerprints regardless of key order: encoding/json sorts
// map keys at every nesting level, so the marshaled form is canonical.
func Fingerprint(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable values (channels, funcs) still need a stable key.
		data = []byte(fmt.Sprintf("%v", params))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
