package migrations

import "gorm.io/gorm"

// Migration001Initial creates the indexes the note queries depend on.
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001"
}

func (m *Migration001Initial) Description() string {
	return "initial note table indexes"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_note_records_created_at_desc ON note_records(created_at DESC)",
	).Error
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	return db.Exec("DROP INDEX IF EXISTS idx_note_records_created_at_desc").Error
}
