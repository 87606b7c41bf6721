//go:build !windows && !linux

package audio

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

type unsupportedPlatform struct{}

// NewPlatform returns a backend whose Acquire always fails.
func NewPlatform(logger *zap.SugaredLogger) Platform {
	logger.Named("platform").Warnw("Audio session control is not supported on this OS", "os", runtime.GOOS)
	return unsupportedPlatform{}
}

func (unsupportedPlatform) Acquire() (Subsystem, error) {
	return nil, fmt.Errorf("audio session control is not supported on %s", runtime.GOOS)
}
