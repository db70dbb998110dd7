// Package version хранит сведения о сборке pos-server. Значения подставляются через -ldflags:
//
//	-X github.com/vladislavdragonenkov/pos/internal/version.version=v1.2.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

func String() string {
	return fmt.Sprintf("pos-server version=%s commit=%s date=%s", version, commit, date)
}

// Fields отдаёт сведения о сборке для структурного лога.
func Fields() map[string]any {
	return map[string]any{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
}
