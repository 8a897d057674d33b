package state

import "path/filepath"

// Paths is the on-disk layout under the database root.
type Paths struct {
	DB     string
	Store  string
	Media  string
	State  string
	Audit  string
	Unlock string
	Tmp    string
	// slow request traces
	Telemetry string
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		DB:    dbPath,
		Store: filepath.Join(dbPath, "store"),
		Media: filepath.Join(dbPath, "media"),

		State:  statePath,
		Audit:  filepath.Join(statePath, "audit"),
		Unlock: filepath.Join(statePath, "unlock"),
		Tmp:    filepath.Join(statePath, "tmp"),

		Telemetry: filepath.Join(statePath, "telemetry"),
	}
}

func StorePath(dbPath string) string  { return PathsFor(dbPath).Store }
func AuditPath(dbPath string) string  { return PathsFor(dbPath).Audit }
func UnlockPath(dbPath string) string { return PathsFor(dbPath).Unlock }
