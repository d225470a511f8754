// ABOUTME: Playback-state reconciliation and recovery decisions
// ABOUTME: Pure functions that arbitrate between local and server playback state
// Package reconcile decides whether a polled server playback snapshot should
// overwrite the state a player holds locally, and where playback should resume
// when a session starts.
//
// Everything here is pure and stateless: the functions take two snapshots and
// return a decision. Fetching snapshots and applying decisions belong to the
// caller (see pkg/protocol and internal/app).
//
// Example:
//
//	decision := reconcile.ResolveServerPlaybackPollDecision(reconcile.PollInput{
//	    Local:  local,
//	    Server: server,
//	})
//	if decision.ShouldApplyServerSnapshot {
//	    apply(server)
//	}
//	log.Printf("poll decision: %s", decision.Reason)
package reconcile
