package system

import "time"

// DefaultSystemConfig contains default values for system assembly
var DefaultSystemConfig = struct {
	ConnectTimeout  time.Duration
	ShutdownTimeout time.Duration
}{
	ConnectTimeout:  30 * time.Second,
	ShutdownTimeout: 30 * time.Second,
}
