package version

// version is stamped at link time:
//
//	go build -ldflags "-X github.com/0xa1bed0/imgship/internal/version.version=v1.2.3" ./cmd/imgship
var version = "local"

// Get returns the build version, "local" for unstamped builds.
func Get() string {
	return version
}
