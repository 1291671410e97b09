package database

import "time"

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         int64     `db:"id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Threshold  float64   `db:"threshold"`
	Fetched    int       `db:"fetched"`
	Retained   int       `db:"retained"`
	Delivered  int       `db:"delivered"`
	Failed     int       `db:"failed"`
	Error      string    `db:"error"` // empty for a successful fetch

	Deliveries []DeliveryRecord `db:"-"`
}

// DeliveryRecord is the outcome of forwarding one message.
type DeliveryRecord struct {
	ID        int64     `db:"id"`
	RunID     int64     `db:"run_id"`
	TS        string    `db:"ts"`
	Text      string    `db:"text"`
	Status    int       `db:"status"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}
