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

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeComp 以 stop channel 模擬阻塞的 Run。
type fakeComp struct {
	mu       sync.Mutex
	stop     chan struct{}
	runErr   error
	shutErr  error
	shutSeq  *[]string
	name     string
	stopOnce sync.Once
}

func newFake(name string, seq *[]string) *fakeComp {
	return &fakeComp{name: name, stop: make(chan struct{}), shutSeq: seq}
}

func (f *fakeComp) Run() error {
	<-f.stop
	return f.runErr
}

func (f *fakeComp) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	*f.shutSeq = append(*f.shutSeq, f.name)
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutErr
}

func TestRunContextShutdownOrder(t *testing.T) {
	var seq []string
	svr, rt := newFake("svr", &seq), newFake("runtime", &seq)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWith(svr, rt).RunContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("clean stop must return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	if len(seq) != 2 || seq[0] != "svr" || seq[1] != "runtime" {
		t.Fatalf("shutdown order = %v", seq)
	}
}

func TestRunContextComponentError(t *testing.T) {
	var seq []string
	bad, rt := newFake("svr", &seq), newFake("runtime", &seq)
	bad.runErr = errors.New("listen failed")
	rt.shutErr = errors.New("pool busy")
	bad.stopOnce.Do(func() { close(bad.stop) })

	err := NewWith(bad, rt).WithShutdownTimeout(time.Second).RunContext(context.Background())
	if !errors.Is(err, bad.runErr) || !errors.Is(err, rt.shutErr) {
		t.Fatalf("want run and shutdown errors joined, got %v", err)
	}
}

func TestRunContextEmpty(t *testing.T) {
	if err := New().RunContext(context.Background()); err == nil {
		t.Fatal("app without components must fail")
	}
}
