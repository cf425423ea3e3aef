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
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/demo"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/setting"
	"github.com/zintix-labs/lerwlab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	id        setting.WID
	walks     int
	worker    int
	seed      int64
	format    string // table | json | yaml
	html      string // 步長分佈圖輸出路徑
	cfgFile   string // 不經 catalog，直接讀設定檔
	pprofmode string
}

type widFlag struct{ p *setting.WID }

func (f widFlag) String() string {
	if f.p == nil {
		return "0"
	}
	return fmt.Sprint(uint(*f.p))
}

func (f widFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = setting.WID(uint(u))
	return nil
}

func bindVar() {
	flag.Var(widFlag{&cfg.id}, "wid", "target walk id (demo configs)")
	flag.IntVar(&cfg.walks, "walks", 10000, "number of walks")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.format, "format", "table", "report format: table|json|yaml")
	flag.StringVar(&cfg.html, "html", "", "write step-length chart to this html file")
	flag.StringVar(&cfg.cfgFile, "cfg", "", "walk setting file (.yaml/.json); overrides -wid")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// 未給或不合法的 seed 改用 crypto 亂數
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

func executeSimulator() error {
	if err := cfg.valid(); err != nil {
		return err
	}
	sim, err := cfg.simulator()
	if err != nil {
		return err
	}

	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	// 報表要給機器讀時，橫幅與進度條改走 stderr/關閉
	showpb := cfg.format == "table"
	banner := p.Sprintf("%s[WORKERS:%d] [WALK:%s] [WALKS:%d] [SEED:%d]%s\n", green, cfg.worker, sim.WalkName, cfg.walks, cfg.seed, reset)
	if showpb {
		p.Print(banner)
	} else {
		p.Fprint(os.Stderr, banner)
	}

	var (
		st   *stats.WalkReport
		used time.Duration
	)
	if cfg.worker == 1 {
		st, used, err = sim.Sim(cfg.walks, showpb)
	} else {
		st, used, err = sim.SimMP(cfg.walks, cfg.worker, showpb) // 併發
	}
	if err != nil {
		return err
	}

	switch cfg.format {
	case "table":
		st.StdOut(used)
	default:
		if err := st.WriteWith(os.Stdout, stats.RenderOf(cfg.format)); err != nil {
			return err
		}
	}

	if cfg.html != "" {
		f, err := os.Create(cfg.html)
		if err != nil {
			return errs.Wrap(err, "create html report failed")
		}
		defer f.Close()
		if err := st.RenderChart(f); err != nil {
			return err
		}
		p.Fprintf(os.Stderr, "chart written to %s\n", cfg.html)
	}
	return nil
}

func (cfg *config) simulator() (*lerwlab.Simulator, error) {
	lab, err := demo.NewLab()
	if err != nil {
		return nil, err
	}
	if cfg.cfgFile == "" {
		return lab.NewSimulatorWithSeed(cfg.id, cfg.seed)
	}
	raw, err := os.ReadFile(cfg.cfgFile)
	if err != nil {
		return nil, errs.Wrap(err, "read walk setting failed")
	}
	ws, err := setting.FromFile(cfg.cfgFile, raw)
	if err != nil {
		return nil, err
	}
	return lab.NewSimulatorBySetting(ws, cfg.seed)
}

func (cfg *config) valid() error {
	if cfg.worker < 1 {
		return errs.NewWarn("value err : workers must > 0")
	}
	if cfg.walks < 1 {
		return errs.NewWarn("value err : walks must > 0")
	}
	if cfg.worker > cfg.walks {
		cfg.worker = cfg.walks
	}
	switch cfg.format {
	case "table", "json", "yaml":
	default:
		return errs.Warnf("value err : unknown format %q", cfg.format)
	}
	return nil
}
