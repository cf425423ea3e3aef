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

package sampler

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/zintix-labs/lerwlab/errs"
	"golang.org/x/sync/singleflight"
)

// TableCache 以 (exponent, r_max) 快取已建好的 AliasTable。
//
// 建表是唯一 O(r_max) 且需要擴展精度的步驟；多個 walker / HTTP 請求同時要求同一組參數時，
// singleflight 保證只建一次，其餘等待同一個結果。
//
// limit > 0 時最多保留 limit 張表，超出時依加入順序淘汰最舊的（FIFO）。
// 被淘汰的表若仍被 walker 持有不受影響，只是下次查詢需要重建。
type TableCache struct {
	mu     sync.RWMutex
	tables map[tableKey]*AliasTable
	order  []tableKey
	limit  int
	group  singleflight.Group
}

type tableKey struct {
	exponent uint64 // math.Float64bits
	rMax     int
}

func (k tableKey) String() string {
	return strconv.FormatUint(k.exponent, 16) + "/" + strconv.Itoa(k.rMax)
}

// NewTableCache 建立不設上限的快取（登記中的設定數量有限）。
func NewTableCache() *TableCache {
	return NewBoundedTableCache(0)
}

// NewBoundedTableCache 建立最多保留 limit 張表的快取；limit <= 0 代表不設上限。
func NewBoundedTableCache(limit int) *TableCache {
	if limit < 0 {
		limit = 0
	}
	return &TableCache{tables: make(map[tableKey]*AliasTable), limit: limit}
}

// Lookup 只查詢快取，不建表。
func (c *TableCache) Lookup(exponent float64, rMax int) (*AliasTable, bool) {
	key := tableKey{exponent: math.Float64bits(exponent), rMax: rMax}
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.tables[key]
	return at, ok
}

// Get 回傳 (exponent, rMax) 對應的 alias 表，必要時建立。
//
// 建表失敗（參數不合法）不會被快取。
func (c *TableCache) Get(exponent float64, rMax int) (*AliasTable, error) {
	return c.GetContext(context.Background(), exponent, rMax)
}

// GetContext 同 Get，但 ctx 取消時立即返回。
//
// 建表本身也會觀察發起者的 ctx；被取消的建表不會寫入快取。
func (c *TableCache) GetContext(ctx context.Context, exponent float64, rMax int) (*AliasTable, error) {
	if at, ok := c.Lookup(exponent, rMax); ok {
		return at, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "table cache: canceled before build")
	}

	key := tableKey{exponent: math.Float64bits(exponent), rMax: rMax}
	ch := c.group.DoChan(key.String(), func() (any, error) {
		if hit, ok := c.Lookup(exponent, rMax); ok {
			return hit, nil
		}
		built, err := BuildContext(ctx, exponent, rMax)
		if err != nil {
			return nil, err
		}
		c.store(key, built)
		return built, nil
	})

	select {
	case <-ctx.Done():
		return nil, errs.Wrap(ctx.Err(), "table cache: canceled while waiting")
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*AliasTable), nil
	}
}

func (c *TableCache) store(key tableKey, at *AliasTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[key]; ok {
		return
	}
	c.tables[key] = at
	c.order = append(c.order, key)
	for c.limit > 0 && len(c.order) > c.limit {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.tables, old)
	}
}

// Len 回傳已快取的表數量。
func (c *TableCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
