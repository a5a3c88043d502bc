// ABOUTME: Product and version constants
// ABOUTME: Reported in control handshakes, mDNS records and logs
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name sent in device info
	Product = "Sendspin Synth"

	// Manufacturer is the manufacturer sent in device info
	Manufacturer = "Sendspin"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
