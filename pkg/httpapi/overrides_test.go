package httpapi_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-optfactory/pkg/httpapi"
)

func TestOverridesFailedReplaceKeepsConcurrentMerge(t *testing.T) {
	overrides := httpapi.NewOverrides()
	boom := errors.New("reload failed")

	started := make(chan struct{})
	release := make(chan struct{})
	replaceErr := make(chan error, 1)
	go func() {
		replaceErr <- overrides.Replace(map[string]any{"a": 1}, func() error {
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	var seen map[string]any
	mergeErr := make(chan error, 1)
	go func() {
		mergeErr <- overrides.Merge(map[string]any{"b": 2}, func() error {
			seen = overrides.Values()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-replaceErr; !errors.Is(err, boom) {
		t.Fatalf("expected replace to fail, got %v", err)
	}
	if err := <-mergeErr; err != nil {
		t.Fatalf("merge: %v", err)
	}

	want := map[string]any{"b": 2}
	if diff := cmp.Diff(want, overrides.Values()); diff != "" {
		t.Fatalf("overrides mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("merge reload saw values of the failed replace (-want +got):\n%s", diff)
	}
}

func TestOverridesConcurrentMergesKeepEveryKey(t *testing.T) {
	overrides := httpapi.NewOverrides()
	want := map[string]any{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k%d", i)
		want[key] = i
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := overrides.Merge(map[string]any{key: i}, func() error { return nil }); err != nil {
				t.Errorf("merge %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	if diff := cmp.Diff(want, overrides.Values()); diff != "" {
		t.Fatalf("overrides mismatch (-want +got):\n%s", diff)
	}
}
