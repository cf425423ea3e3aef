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

// Package lattice 定義 ℤ² 上的位置與有界格點的佔用集合。
package lattice

import "strconv"

// Position 是 ℤ² 上的整數座標，值型別，以結構相等比較。
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Origin 是 (0,0)。
var Origin = Position{}

// Add 回傳 p + d。
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub 回傳 p - q。
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// ChebyshevNorm 回傳 max(|x|,|y|)。
func (p Position) ChebyshevNorm() int {
	return max(abs(p.X), abs(p.Y))
}

func (p Position) String() string {
	return "(" + strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y) + ")"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
