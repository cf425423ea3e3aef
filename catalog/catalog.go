package catalog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/setting"
)

var (
	ErrDupID   = errs.NewFatal("duplicate walk id")
	ErrDupName = errs.NewFatal("duplicate walk name")
)

// Entry 是 catalog 內的一筆索引：ID、名稱與設定檔檔名。
type Entry struct {
	WID        setting.WID
	Name       string
	ConfigName string
}

// Summary 是對外列舉用的設定摘要。
type Summary struct {
	WID      setting.WID `json:"wid"`
	Name     string      `json:"name"`
	Exponent float64     `json:"exponent"`
	RMax     int         `json:"r_max"`
	Bound    int         `json:"bound"`
	Steps    int         `json:"steps"`
	RNG      string      `json:"rng"`
}

// SummaryOf 由設定產生摘要。
func SummaryOf(ws *setting.WalkSetting) Summary {
	return Summary{
		WID:      ws.WalkID,
		Name:     ws.WalkName,
		Exponent: ws.Exponent,
		RMax:     ws.RMax,
		Bound:    ws.Bound,
		Steps:    ws.Steps,
		RNG:      ws.RNG,
	}
}

type Catalog struct {
	byID   map[setting.WID]Entry
	byName map[string]Entry
	ids    []setting.WID       // 用來穩定排序
	unique map[string]struct{} // 一組設定，檔名需唯一
	config *multiFS
	frozen bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:   map[setting.WID]Entry{},
		byName: map[string]Entry{},
		ids:    make([]setting.WID, 0, 16),
		unique: map[string]struct{}{},
		config: multFS,
	}, nil
}

// Register 註冊一批 entry；整批先驗證，全部通過才寫入。
func (c *Catalog) Register(metas ...Entry) error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	seenID := map[setting.WID]struct{}{}
	seenName := map[string]struct{}{}
	seenCfg := map[string]struct{}{}
	for i := range metas {
		meta := &metas[i]
		meta.Name = strings.ToLower(strings.TrimSpace(meta.Name))
		if meta.Name == "" {
			return errs.NewFatal("walk name required")
		}
		if err := validFileName(meta.ConfigName); err != nil {
			return err
		}
		if _, ok := c.config.index[meta.ConfigName]; !ok {
			return errs.Fatalf("config file not found: %s", meta.ConfigName)
		}
		if _, ok := c.byID[meta.WID]; ok {
			return ErrDupID
		}
		if _, ok := c.byName[meta.Name]; ok {
			return ErrDupName
		}
		if _, ok := c.unique[meta.ConfigName]; ok {
			return errs.Fatalf("duplicate config name: %s", meta.ConfigName)
		}
		if _, ok := seenID[meta.WID]; ok {
			return ErrDupID
		}
		if _, ok := seenName[meta.Name]; ok {
			return ErrDupName
		}
		if _, ok := seenCfg[meta.ConfigName]; ok {
			return errs.Fatalf("duplicate config name: %s", meta.ConfigName)
		}
		seenID[meta.WID] = struct{}{}
		seenName[meta.Name] = struct{}{}
		seenCfg[meta.ConfigName] = struct{}{}
	}
	for _, meta := range metas {
		c.unique[meta.ConfigName] = struct{}{}
		c.byID[meta.WID] = meta
		c.byName[meta.Name] = meta
		c.ids = append(c.ids, meta.WID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return nil
}

// Discover 掃描所有設定來源，解析每個 .yaml/.yml/.json 並依檔內 walk_id / walk_name 註冊。
//
// 以 "." 開頭的檔案略過；任何解析或重複錯誤都會讓整批註冊失敗。
func (c *Catalog) Discover() error {
	entries := make([]Entry, 0, 16)
	seenID := map[setting.WID]string{}
	seenName := map[string]string{}

	for _, name := range c.config.names() {
		if strings.HasPrefix(name, ".") {
			continue
		}
		ws, err := c.readSetting(name)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("parse walk setting failed: %s", name))
		}
		if prev, ok := seenID[ws.WalkID]; ok {
			return errs.Fatalf("duplicate walk id: %d (config=%s and %s)", ws.WalkID, prev, name)
		}
		if _, ok := c.byID[ws.WalkID]; ok {
			return errs.Fatalf("walk id already registered: %d (config=%s)", ws.WalkID, name)
		}
		seenID[ws.WalkID] = name
		if prev, ok := seenName[ws.WalkName]; ok {
			return errs.Fatalf("duplicate walk name: %s (config=%s and %s)", ws.WalkName, prev, name)
		}
		if _, ok := c.byName[ws.WalkName]; ok {
			return errs.Fatalf("walk name already registered: %s (config=%s)", ws.WalkName, name)
		}
		seenName[ws.WalkName] = name
		entries = append(entries, Entry{WID: ws.WalkID, Name: ws.WalkName, ConfigName: name})
	}
	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}
	return c.Register(entries...)
}

func (c *Catalog) GetByID(id setting.WID) (Entry, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	m, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

func (c *Catalog) IDs() []setting.WID {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]setting.WID(nil), c.ids...)
}

func (c *Catalog) All() []Entry {
	m := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		m = append(m, c.byID[id])
	}
	return m
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

// SettingByID 讀取並驗證 id 對應的設定檔。
func (c *Catalog) SettingByID(id setting.WID) (*setting.WalkSetting, error) {
	e, ok := c.GetByID(id)
	if !ok {
		return nil, errs.Warnf("walk id %d does not exist in catalog", id)
	}
	return c.readSetting(e.ConfigName)
}

// SettingByName 讀取並驗證 name 對應的設定檔。
func (c *Catalog) SettingByName(name string) (*setting.WalkSetting, error) {
	e, ok := c.GetByName(name)
	if !ok {
		return nil, errs.Warnf("walk name %q does not exist in catalog", name)
	}
	return c.readSetting(e.ConfigName)
}

func (c *Catalog) readSetting(name string) (*setting.WalkSetting, error) {
	src, ok := c.config.GetFS(name)
	if !ok {
		return nil, errs.Warnf("config %s does not exist in catalog", name)
	}
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, errs.Wrap(err, "catalog read file error")
	}
	return setting.FromFile(name, raw)
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewFatal("empty config filename")
	}
	if strings.ContainsAny(file, `/\:`) {
		return errs.Fatalf("invalid config filename: %q (must be a basename; no / \\ :)", file)
	}
	if !isConfigExt(file) {
		return errs.Fatalf("invalid config filename: %q (must end with .yaml, .yml, or .json)", file)
	}
	if strings.HasPrefix(file, ".") {
		return errs.Fatalf("invalid config filename: %q (cannot start with '.')", file)
	}
	return nil
}

func isConfigExt(file string) bool {
	lower := strings.ToLower(file)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.Fatalf("fs[%d] is nil", i)
		}
	}

	m := &multiFS{
		src:   src,
		index: make(map[string]int, 64),
	}

	for i := range src {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// 設定目錄必須是平的：只允許根目錄 "."
				if path == "." {
					return nil
				}
				return errs.Fatalf("config FS must be flat (no subdirectories): %q", path)
			}
			if !isConfigExt(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.Fatalf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i)
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], ok
	}
	return nil, false
}

// names 回傳已索引的設定檔名（排序後，確保 Discover 的錯誤訊息穩定）。
func (m *multiFS) names() []string {
	out := make([]string, 0, len(m.index))
	for k := range m.index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
