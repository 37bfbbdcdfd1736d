package rediskey

import "fmt"

// Key prefixes shared across processes.
const (
	SnapshotPrefix = "snapshot"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSnapshotKey returns "snapshot:{name}"
func BuildSnapshotKey(name string) string {
	return NamespaceKey(SnapshotPrefix, name)
}
