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

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// lineFilter 決定 go test 的每一行輸出如何呈現。
type lineFilter func(line string)

// summaryOnly 只留下套件層級的 ok / FAIL 與建置錯誤。
func summaryOnly(line string) {
	switch {
	case strings.HasPrefix(line, "ok"):
		printGreen(line)
	case strings.HasPrefix(line, "FAIL"):
		printRed(line)
	case strings.Contains(line, "build failed"), strings.Contains(line, "setup failed"):
		printRed(line)
	}
}

func skipNoTestFiles(line string) {
	if strings.Contains(line, "[no test files]") {
		return
	}
	passThrough(line)
}

func passThrough(line string) {
	switch {
	case strings.HasPrefix(line, "ok"):
		printGreen(line)
	case strings.HasPrefix(line, "FAIL"):
		printRed(line)
	default:
		fmt.Println(line)
	}
}

// goTest 先清 test cache，再以合併的 stdout/stderr 逐行跑過 filter。
func goTest(filter lineFilter, args ...string) error {
	if err := exec.Command("go", "clean", "-testcache").Run(); err != nil {
		return fmt.Errorf("go clean -testcache failed: %w", err)
	}
	cmd := exec.Command("go", append([]string{"test"}, args...)...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start go test: %w", err)
	}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		filter(sc.Text())
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("tests finished with errors: %w", err)
	}
	return sc.Err()
}

// buildPGO 以 cmd/run 的 CPU profile 產生 default.pgo，之後 go build 會自動套用。
func buildPGO() error {
	printGreen("profiling cmd/run for PGO")
	cmd := exec.Command("go", "run", "./cmd/run", "-wid", "1", "-walks", "2000", "-worker", "4", "-seed", "1", "-format", "json", "-p", "cpu")
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("profile run failed: %w", err)
	}
	raw, err := os.ReadFile(filepath.Join("build", "profiling", "cpu.pprof"))
	if err != nil {
		return err
	}
	dst := filepath.Join("cmd", "run", "default.pgo")
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return err
	}
	printGreen("wrote " + dst)
	return nil
}
