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

package setting

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/lerwlab/errs"
	"gopkg.in/yaml.v3"
)

// FromYAML 解析 YAML 並驗證。未知欄位視為錯誤（拼錯欄位就報錯）。
func FromYAML(data []byte) (*WalkSetting, error) {
	ws := &WalkSetting{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(ws); err != nil {
		return nil, errs.Wrap(errs.Invalidf("%v", err), "setting: failed to unmarshal yaml")
	}
	if err := ws.init(); err != nil {
		return nil, err
	}
	return ws, nil
}

// FromJSON 解析 JSON 並驗證。未知欄位視為錯誤。
func FromJSON(data []byte) (*WalkSetting, error) {
	ws := &WalkSetting{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ws); err != nil {
		return nil, errs.Wrap(errs.Invalidf("%v", err), "setting: failed to unmarshal json")
	}
	if err := ws.init(); err != nil {
		return nil, err
	}
	return ws, nil
}

// FromFile 依副檔名（.yaml/.yml/.json）選擇解碼器。
func FromFile(filename string, raw []byte) (*WalkSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FromYAML(raw)
	case ".json":
		return FromJSON(raw)
	default:
		return nil, errs.Invalidf("unsupported config format: %q", filename)
	}
}
