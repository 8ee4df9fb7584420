// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package qsync

// RaceEnabled is true when the race detector is active.
// The parker pool is bypassed, and tests skip scenarios whose plain
// fields are ordered only by atomix operations the detector cannot see.
const RaceEnabled = true
