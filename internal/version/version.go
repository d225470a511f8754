// ABOUTME: Version and product identification constants
// ABOUTME: Sent in the client/hello device info and shown by the CLIs
package version

const (
	// Version is the release version
	Version = "0.3.0"
	// Product is the product name reported to servers
	Product = "Playsync Player"
	// Manufacturer identifies who built this client
	Manufacturer = "Resonate"
)
