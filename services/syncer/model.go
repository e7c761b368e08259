package syncer

import (
	"encoding/json"
	"time"

	"ledgersync/services/ledger"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type Stats struct {
	Fetched    int `gorm:"column:fetched;not null" json:"fetched"`
	Inserted   int `gorm:"column:inserted;not null" json:"inserted"`
	Duplicates int `gorm:"column:duplicates;not null" json:"duplicates"`
	Rejected   int `gorm:"column:rejected;not null" json:"rejected"`
}

// SyncRun is the audit record of one sync cycle.
type SyncRun struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	Code          string         `gorm:"column:code;index" json:"code,omitempty"`
	WindowStart   time.Time      `gorm:"column:window_start" json:"windowStart"`
	WindowEnd     time.Time      `gorm:"column:window_end" json:"windowEnd"`
	Status        RunStatus      `gorm:"column:status;index" json:"status"`
	Stats         `gorm:"embedded"`
	AffectedUsers datatypes.JSON `gorm:"column:affected_users" json:"affectedUsers"`
	Fallback      bool           `gorm:"column:fallback" json:"fallback"`
	ErrorMsg      string         `gorm:"column:error_msg" json:"errorMsg,omitempty"`
	StartedAt     time.Time      `gorm:"column:started_at;index" json:"startedAt"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// Result is what a caller of Sync sees once the cycle has finished.
type Result struct {
	RunID         string    `json:"runId"`
	Code          string    `json:"code,omitempty"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
	Stats
	AffectedUsers []string `json:"affectedUsers"`
	Fallback      bool     `json:"fallback"`
}

func (r *Result) record(run *SyncRun) {
	run.Stats = r.Stats
	run.Fallback = r.Fallback
	users, _ := json.Marshal(r.AffectedUsers)
	run.AffectedUsers = users
}

// userBatches groups a batch per user, keeping first-seen user order so logs
// and run records are stable.
type userBatches struct {
	index map[string]int
	users []string
	txs   [][]*ledger.Transaction
}

func newUserBatches() *userBatches {
	return &userBatches{index: make(map[string]int)}
}

func (b *userBatches) Add(tx *ledger.Transaction) {
	i, ok := b.index[tx.UserID]
	if !ok {
		i = len(b.users)
		b.index[tx.UserID] = i
		b.users = append(b.users, tx.UserID)
		b.txs = append(b.txs, nil)
	}
	b.txs[i] = append(b.txs[i], tx)
}

func (b *userBatches) Len() int { return len(b.users) }
