// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package qsync

import (
	"fmt"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// ---------------------------------------------------------------------------
// Logging integration.

// Logger receives log output. *log.Logger satisfies it.
type Logger interface {
	Output(calldepth int, s string) error
}

type loggerBox struct {
	l Logger
}

var (
	globalLogger atomic.Pointer[loggerBox]
	globalDebug  atomix.Bool
)

// SetLogger sets where log messages are sent. Contract violations are
// always logged before the panic; pass nil to disable.
func SetLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(nil)
		return
	}
	globalLogger.Store(&loggerBox{l: logger})
}

// SetDebug enables debug messages for cancellations, timeouts, and
// condition transfers. Only meaningful if a logger is also set.
func SetDebug(debug bool) {
	globalDebug.StoreRelease(debug)
}

func logf(format string, v ...any) {
	if b := globalLogger.Load(); b != nil {
		b.l.Output(2, fmt.Sprintf(format, v...))
	}
}

func debugf(format string, v ...any) {
	if !globalDebug.LoadRelaxed() {
		return
	}
	if b := globalLogger.Load(); b != nil {
		b.l.Output(2, fmt.Sprintf(format, v...))
	}
}
