// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs 定義 lerwlab 全域共用的錯誤型別與分級。
//
// 錯誤分兩類：
//   - 邊界錯誤：參數不合法（指數 <= 0、r_max < 1、L < 1 ...），以 error 回傳，
//     可用 errors.Is(err, ErrInvalidArgument) 辨識。
//   - 合約違反：熱路徑（抽樣、佔據查詢）上的呼叫端錯誤，直接 panic(*E)，不做任何修正。
package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

// ErrInvalidArgument 是所有參數錯誤的共同根因。
var ErrInvalidArgument = errors.New("invalid argument")

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端追加的上下文；Cause 串接下層錯誤（wrap）；ErrLv 為嚴重度。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

// Invalidf 建立一個參數錯誤（Warn 級，Cause = ErrInvalidArgument）。
//
// Warn 級代表「呼叫端可修正」：HTTP 邊界會映射成 400。
func Invalidf(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), Cause: ErrInvalidArgument, ErrLv: Warn}
}

// Contractf 以 Fatal 級 *E panic，用於熱路徑上的合約違反。
//
// 熱路徑函式不回傳 error（O(1)、零配置），呼叫端違反前置條件時立即中止。
func Contractf(format string, a ...any) {
	panic(&E{Message: fmt.Sprintf(format, a...), Cause: ErrInvalidArgument, ErrLv: Fatal})
}

// Wrap 使用給定訊息包裝底層錯誤。
//
// ErrLevel 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv（保持原本嚴重度）。
//   - 否則（標準庫或三方依賴錯誤）一律視為 Fatal。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	if errors.As(cause, &e) {
		errLv = e.ErrLv
	}
	r := New(errLv, msg)
	r.Cause = cause
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}
