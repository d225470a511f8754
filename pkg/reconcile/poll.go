// ABOUTME: Poll reconciliation between local playback state and a server snapshot
// ABOUTME: Ordered first-match-wins rules with a local-authoritative bias
package reconcile

import "strings"

// pollFacts is everything the rules look at, computed once per poll
type pollFacts struct {
	in            PollInput
	localMediaID  string
	serverMediaID string
	localIDs      []string
	serverIDs     []string
}

// pollRule is one named step of the decision. Rules run in order and the
// first one that returns ok decides.
type pollRule struct {
	name  string
	check func(f *pollFacts) (Decision, bool)
}

var pollRules = []pollRule{
	{name: "freshness", check: serverOlderThanLocalSave},
	{name: "no-local-authority", check: noLocalTrackAuthority},
	{name: "foreign-server-state", check: foreignServerState},
	{name: "truncated-server-queue", check: truncatedServerQueue},
	{name: "divergent-queue", check: divergentQueue},
	{name: "server-behind", check: serverBehindLocal},
}

// ResolveServerPlaybackPollDecision decides whether a polled server snapshot
// should replace local state. Local state holding an active track queue wins
// unless it is absent; anything ambiguous keeps local state.
func ResolveServerPlaybackPollDecision(in PollInput) Decision {
	f := &pollFacts{
		in:            in,
		localMediaID:  strings.TrimSpace(in.Local.MediaID),
		serverMediaID: strings.TrimSpace(in.Server.MediaID),
		localIDs:      TrackIDs(in.Local.Queue),
		serverIDs:     TrackIDs(in.Server.Queue),
	}

	for _, rule := range pollRules {
		if d, ok := rule.check(f); ok {
			return d
		}
	}
	return Decision{ShouldApplyServerSnapshot: false, Reason: ReasonMediaUnchanged}
}

func serverOlderThanLocalSave(f *pollFacts) (Decision, bool) {
	if f.in.Server.UpdatedAtMs < f.in.Local.LastSaveAtMs {
		return reject(ReasonServerOlderThanLocalSave), true
	}
	return Decision{}, false
}

// The only rule that adopts the server snapshot.
func noLocalTrackAuthority(f *pollFacts) (Decision, bool) {
	if f.in.Local.PlaybackType != PlaybackTrack || f.localMediaID == "" {
		return Decision{ShouldApplyServerSnapshot: true, Reason: ReasonAdoptServer}, true
	}
	return Decision{}, false
}

func foreignServerState(f *pollFacts) (Decision, bool) {
	if f.in.Server.PlaybackType != PlaybackTrack {
		return reject(ReasonLocalTrackQueueAuthoritative), true
	}
	if indexOfID(f.localIDs, f.localMediaID) < 0 {
		return reject(ReasonLocalTrackQueueAuthoritative), true
	}
	return Decision{}, false
}

// Checked before divergentQueue: a truncated queue is also a mismatch.
func truncatedServerQueue(f *pollFacts) (Decision, bool) {
	if IsServerQueueTruncatedPrefix(f.in.Local.Queue, f.in.Server.Queue) {
		return reject(ReasonServerQueueTruncatedPrefix), true
	}
	return Decision{}, false
}

func divergentQueue(f *pollFacts) (Decision, bool) {
	if !equalIDs(f.localIDs, f.serverIDs) {
		return reject(ReasonLocalTrackQueueAuthoritative), true
	}
	return Decision{}, false
}

// Queues are identical here. A server media id missing from the queue sits
// at -1 and therefore counts as behind.
func serverBehindLocal(f *pollFacts) (Decision, bool) {
	localPos := indexOfID(f.localIDs, f.localMediaID)
	serverPos := indexOfID(f.serverIDs, f.serverMediaID)
	if serverPos < localPos {
		return reject(ReasonServerMediaBehindLocalQueue), true
	}
	return Decision{}, false
}

func reject(reason Reason) Decision {
	return Decision{ShouldApplyServerSnapshot: false, Reason: reason}
}
