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

// Package perf 以 runtime/pprof 包住一次模擬執行，輸出 cpu / heap / allocs profile。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/lerwlab/errs"
)

// Dir 是 profile 檔的寫入目錄。
var Dir = "build/profiling"

// RunPProf 依 mode 決定要包哪一種 profile；mode 為空時直接執行。
//
// exe 的錯誤優先回傳；profile 寫檔失敗則包成 Fatal。
func RunPProf(exe func() error, mode string) error {
	switch mode {
	case "":
		return exe()
	case "cpu":
		return PProfCPU(exe)
	case "heap":
		return snapshotAfter(exe, "heap")
	case "allocs":
		return snapshotAfter(exe, "allocs")
	default:
		return errs.Warnf("unknown pprof mode %q (want cpu|heap|allocs)", mode)
	}
}

// PProfCPU 在 exe 執行期間取樣 CPU，輸出 cpu.pprof，也可作為 PGO 的輸入。
//
//	go run ./cmd/run -p cpu
func PProfCPU(exe func() error) error {
	f, err := create("cpu.pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "failed to start cpu profile")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// snapshotAfter 在 exe 結束後寫出 heap（in-use）或 allocs（累積配置）快照。
func snapshotAfter(exe func() error, name string) error {
	if err := exe(); err != nil {
		return err
	}
	// heap 快照前先 GC，讓 live objects 貼近最新狀態
	runtime.GC()

	f, err := create(name + ".pprof")
	if err != nil {
		return err
	}
	defer f.Close()
	prof := pprof.Lookup(name)
	if prof == nil {
		return errs.Fatalf("pprof profile %s not found", name)
	}
	if err := prof.WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "failed to write "+name+" profile")
	}
	return nil
}

func create(file string) (*os.File, error) {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "failed to create profiling dir")
	}
	f, err := os.Create(filepath.Join(Dir, file))
	if err != nil {
		return nil, errs.Wrap(err, "failed to create "+file)
	}
	return f, nil
}
