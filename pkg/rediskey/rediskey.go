package rediskey

import "fmt"

// Keys shared by every ledgersync process pointed at the same redis.
const (
	Prefix             = "ledgersync"
	SummaryPrefix      = "ledgersync:summary"
	SummaryGenPrefix   = "ledgersync:summary-gen"
	SyncCursorKey      = "ledgersync:sync:cursor"
	SyncSequencePrefix = "ledgersync:seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSummaryKey returns "ledgersync:summary:{userID}:{gen}"
func BuildSummaryKey(userID, gen string) string {
	return NamespaceKey(SummaryPrefix, fmt.Sprintf("%s:%s", userID, gen))
}

// BuildSummaryGenKey returns "ledgersync:summary-gen:{userID}"
func BuildSummaryGenKey(userID string) string {
	return NamespaceKey(SummaryGenPrefix, userID)
}

// BuildSequenceKey returns "ledgersync:seq:{prefix}:{day}"
func BuildSequenceKey(prefix, day string) string {
	return NamespaceKey(SyncSequencePrefix, fmt.Sprintf("%s:%s", prefix, day))
}
