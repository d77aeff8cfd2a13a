// ABOUTME: Version information for yume-jukebox binaries
// ABOUTME: Version can be overridden at link time with -ldflags -X
package version

// Version is the release version. Override with
// -ldflags "-X github.com/Desdaemon/yume-jukebox/internal/version.Version=1.2.3".
var Version = "0.1.0"

// Product is the product name shown in logs and the TUI.
const Product = "yume-jukebox"

// String returns "<product> <version>".
func String() string {
	return Product + " " + Version
}
