package taskname

const (
	// Sync tasks
	LedgerSyncRun = "ledger:sync:run"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)
