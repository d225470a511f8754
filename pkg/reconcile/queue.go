// ABOUTME: Queue comparison by normalized track id sequence
// ABOUTME: Detects exact matches and stale truncated-prefix server queues
package reconcile

import "strings"

// TrackIDs returns the queue's ids trimmed, with blank ids dropped.
// Order is preserved.
func TrackIDs(q Queue) []string {
	ids := make([]string, 0, len(q))
	for _, track := range q {
		id := strings.TrimSpace(string(track.ID))
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// QueuesMatchByTrackID reports whether both queues hold the same ids in the
// same order. Titles, sources and other fields are ignored.
func QueuesMatchByTrackID(local, server Queue) bool {
	return equalIDs(TrackIDs(local), TrackIDs(server))
}

// IsServerQueueTruncatedPrefix reports whether the server queue is a
// non-empty, strictly shorter leading prefix of the local queue. Such a
// snapshot comes from a server that has not caught up with the client.
func IsServerQueueTruncatedPrefix(local, server Queue) bool {
	localIDs := TrackIDs(local)
	serverIDs := TrackIDs(server)

	if len(localIDs) == 0 || len(serverIDs) == 0 {
		return false
	}
	if len(serverIDs) >= len(localIDs) {
		return false
	}
	return equalIDs(localIDs[:len(serverIDs)], serverIDs)
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// indexOfID returns the position of id in ids, or -1
func indexOfID(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
