package regiondef

import "fmt"

// RegionTarget identifies where a region's candidates come from and which
// DNS name its winners are published under.
type RegionTarget struct {
	Region     string
	SourceURL  string
	RecordName string
}

func (t RegionTarget) String() string {
	return fmt.Sprintf("%s (%s -> %s)", t.Region, t.SourceURL, t.RecordName)
}

type ConfigError struct {
	Reason string
}

var _ error = ConfigError{}

func (e ConfigError) Error() string {
	return "configuration error: " + e.Reason
}
