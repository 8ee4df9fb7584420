// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package goid identifies the calling goroutine.
//
// The id is stable for the lifetime of the goroutine and never zero, so
// zero can mean "no goroutine".
package goid

import "github.com/petermattis/goid"

// Get returns the id of the calling goroutine.
func Get() int64 {
	return goid.Get()
}
