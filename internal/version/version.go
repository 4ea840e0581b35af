package version

const (
	AppName = "Server Companion"
	Version = "0.3.0"
)
