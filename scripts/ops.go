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

// ops 是 Makefile 背後的任務入口：go run ./scripts <task>
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	printGreen  = color.New(color.FgGreen).PrintlnFunc()
	printRed    = color.New(color.FgRed).PrintlnFunc()
	printYellow = color.New(color.FgYellow).PrintlnFunc()
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts [test|test-all|test-detail|race|pgo]")
		os.Exit(1)
	}
	if err := selectTask(os.Args[1]); err != nil {
		printRed(err.Error())
		os.Exit(1)
	}
}

func selectTask(task string) error {
	switch task {
	case "test":
		printGreen("running tests")
		return goTest(summaryOnly, "./...", "-cover", "-count=1")
	case "test-all":
		printGreen("running tests (all with coverage)")
		return goTest(passThrough, "./...", "-cover")
	case "test-detail":
		printGreen("running tests (detail)")
		return goTest(skipNoTestFiles, "./...", "-v", "-count=1")
	case "race":
		printGreen("running tests (race)")
		return goTest(summaryOnly, "-race", "./...", "-count=1")
	case "pgo":
		return buildPGO()
	default:
		printYellow(fmt.Sprintf("Unknown task: %s", task))
		return fmt.Errorf("unknown task %q", task)
	}
}
