package version

// Version is the application version, overridable at build time via
// -ldflags "-X transcriptor/internal/version.Version=v1.2.3".
var Version = "0.1.0"
