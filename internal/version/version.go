package version

import "fmt"

// Заполняются при сборке через -ldflags:
//
//	-X .../internal/version.version=v1.0.0
//	-X .../internal/version.commit=$(git rev-parse --short HEAD)
//	-X .../internal/version.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Version возвращает версию сборки сервиса.
func Version() string {
	return version
}

// String возвращает версию, коммит и дату сборки одной строкой.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}
