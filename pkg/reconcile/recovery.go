// ABOUTME: Session-start recovery of resume position and play intent
// ABOUTME: A remembered local position always beats the server's resume hint
package reconcile

import "math"

// ResolveLocalAuthoritativeRecovery picks where playback resumes when a
// session starts or reconnects. The server hint is only consulted when the
// local position is zero, and is read exactly once.
func ResolveLocalAuthoritativeRecovery(local LocalResume, server ResumeHint) RecoveryDecision {
	position := local.PositionSec
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		position = 0
	}

	if position > 0 {
		return RecoveryDecision{
			ResumeAtSec: position,
			ShouldPlay:  local.ShouldPlay,
			Authority:   AuthorityLocal,
		}
	}

	if server != nil {
		hintAt := server.ResumeAtSec()
		if !math.IsNaN(hintAt) && !math.IsInf(hintAt, 0) && hintAt > 0 {
			return RecoveryDecision{
				ResumeAtSec: hintAt,
				ShouldPlay:  server.ShouldPlay(),
				Authority:   AuthorityServer,
			}
		}
	}

	return RecoveryDecision{
		ResumeAtSec: position,
		ShouldPlay:  local.ShouldPlay,
		Authority:   AuthorityLocal,
	}
}
