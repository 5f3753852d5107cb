package domain

// Hunting session statuses. The scheduler only picks up sessions in one of
// the active statuses; paused and waiting_approval sessions are skipped.
const (
	SessionStatusIdle            = "idle"
	SessionStatusMonitoring      = "monitoring"
	SessionStatusSearching       = "searching"
	SessionStatusScoring         = "scoring"
	SessionStatusWaitingApproval = "waiting_approval"
	SessionStatusPaused          = "paused"
)

// ActiveSessionStatuses are the statuses eligible for a scheduled hunting run.
var ActiveSessionStatuses = []string{
	SessionStatusMonitoring,
	SessionStatusSearching,
	SessionStatusScoring,
}

var knownSessionStatuses = map[string]struct{}{
	SessionStatusIdle:            {},
	SessionStatusMonitoring:      {},
	SessionStatusSearching:       {},
	SessionStatusScoring:         {},
	SessionStatusWaitingApproval: {},
	SessionStatusPaused:          {},
}

// IsKnownSessionStatus reports whether the value is a recognized session status.
func IsKnownSessionStatus(status string) bool {
	_, ok := knownSessionStatuses[status]
	return ok
}
