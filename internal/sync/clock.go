// ABOUTME: Clock synchronization with drift compensation
// ABOUTME: Maps client wall time into the server's clock frame for save timestamps
package sync

import (
	"log"
	"sync"
	"time"
)

// ClockSync estimates the offset and drift between this client and the
// snapshot server. Both ends speak Unix microseconds.
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // server - client, microseconds
	drift          float64 // dimensionless μs/μs
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // client time when offset/drift were last updated
	sampleCount    int
	smoothingRate  float64
	now            func() time.Time
}

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

const (
	maxSampleRTT      = 100000 // 100ms
	degradedRTT       = 50000  // 50ms
	maxResidual       = 50000  // 50ms
	staleSyncInterval = 5 * time.Second
)

// NewClockSync creates a new clock synchronizer
func NewClockSync() *ClockSync {
	return &ClockSync{
		smoothingRate: 0.1,
		quality:       QualityLost,
		now:           time.Now,
	}
}

// ProcessSyncResponse folds one client/time ↔ server/time exchange into the estimate
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measuredOffset := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.lastSync = cs.now()

	if rtt < 0 || rtt > maxSampleRTT {
		log.Printf("Discarding sync sample: rtt %dμs", rtt)
		return
	}

	if cs.sampleCount == 0 {
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = QualityGood
		log.Printf("Initial sync: offset=%dμs, rtt=%dμs", cs.offset, rtt)
		return
	}

	dt := float64(t4 - cs.lastSyncMicros)
	if dt <= 0 {
		log.Printf("Discarding sync sample: non-monotonic time")
		return
	}

	if cs.sampleCount == 1 {
		cs.drift = float64(measuredOffset-cs.offset) / dt
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = qualityFor(rtt)
		return
	}

	predicted := cs.offset + int64(cs.drift*dt)
	residual := measuredOffset - predicted
	if residual > maxResidual || residual < -maxResidual {
		log.Printf("Discarding sync sample: residual %dμs (possible clock jump)", residual)
		return
	}

	cs.offset = predicted + int64(cs.smoothingRate*float64(residual))
	cs.drift += cs.smoothingRate * float64(residual) / dt
	cs.lastSyncMicros = t4
	cs.sampleCount++
	cs.quality = qualityFor(rtt)
}

func qualityFor(rtt int64) Quality {
	if rtt < degradedRTT {
		return QualityGood
	}
	return QualityDegraded
}

// calculateOffset computes RTT and clock offset (positive = server ahead)
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// ServerMicros converts a client Unix µs timestamp into the server frame.
// Before the first sample it returns the client time unchanged.
func (cs *ClockSync) ServerMicros(clientMicros int64) int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return clientMicros
	}
	dt := clientMicros - cs.lastSyncMicros
	return clientMicros + cs.offset + int64(cs.drift*float64(dt))
}

// ServerNowMillis is the current time in the server frame, Unix ms
func (cs *ClockSync) ServerNowMillis() int64 {
	return cs.ServerMicros(cs.ClientMicros()) / 1000
}

// ClientMicros returns raw client Unix time in microseconds
func (cs *ClockSync) ClientMicros() int64 {
	return cs.now().UnixMicro()
}

// GetStats returns sync statistics
func (cs *ClockSync) GetStats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// CheckQuality marks the sync lost when no sample arrived recently
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.now().Sub(cs.lastSync) > staleSyncInterval {
		cs.quality = QualityLost
	}
	return cs.quality
}
