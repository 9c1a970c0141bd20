package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the SQLite database
	DefaultDatabasePath = "./lending.db"

	// DefaultTasksDatabaseSuffix is appended to the main database name for the task queue file
	DefaultTasksDatabaseSuffix = "-tasks"
)
