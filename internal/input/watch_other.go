//go:build !linux

package input

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// watch runs one blocking reader per device. Closing the files on
// cancellation unblocks them.
func watch(ctx context.Context, files []*os.File, emit func(Event)) error {
	if len(files) == 0 {
		return errNoDevices
	}

	var mu sync.Mutex // serializes emit across readers
	errc := make(chan error, len(files))

	for _, f := range files {
		go func(f *os.File) {
			err := ReadEvents(f, func(ev Event) {
				mu.Lock()
				defer mu.Unlock()
				emit(ev)
			})
			errc <- fmt.Errorf("read from %s: %w", f.Name(), err)
		}(f)
	}

	select {
	case <-ctx.Done():
		for _, f := range files {
			_ = f.Close()
		}
		return ctx.Err()
	case err := <-errc:
		return err
	}
}
