package store

import (
	"fmt"

	"authdns/internal/model"
)

// hex32 computes a stable 32-bit FNV-1a fingerprint, rendered as 8
// lower-case hex digits, used for the store's remote key fingerprint.
// This is a fingerprint hash, not a cryptographic one: the collision
// domain is scoped per zone-per-name, so an accidental match requires
// two simultaneous collisions on independent inputs.
func hex32(s string) string {
	hash := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return fmt.Sprintf("%08x", hash)
}

// remoteKey builds the backend hash key "cl:<hex32(zone)>:<hex32(name)>:<type>".
func remoteKey(zone model.ZoneName, name model.RecordName, kind model.RecordType) string {
	return "cl:" + hex32(zone.String()) + ":" + hex32(string(name)) + ":" + string(kind)
}

// localKey is the local cache's lookup key, kept human-readable (unlike
// the remote fingerprint key) since it never leaves the process.
func localKey(zone model.ZoneName, name model.RecordName, kind model.RecordType) string {
	return zone.String() + "|" + string(name) + "|" + string(kind)
}
