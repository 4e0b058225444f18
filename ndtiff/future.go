package ndtiff

import "github.com/robert-malhotra/go-ndtiff/internal/index"

// Future is the pending result of an asynchronous write. It resolves on the
// writer goroutine with the produced index entry, or with the error that
// failed the write.
type Future struct {
	done  chan struct{}
	entry *IndexEntry
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func rejectedFuture(err error) *Future {
	f := newFuture()
	f.reject(err)
	return f
}

func (f *Future) resolve(entry *index.Entry, err error) {
	f.entry = newIndexEntry(entry)
	f.err = err
	close(f.done)
}

func (f *Future) reject(err error) {
	f.err = err
	close(f.done)
}

// Done returns a channel that is closed when the write has completed or
// failed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the write completes and returns its index entry.
func (f *Future) Get() (*IndexEntry, error) {
	<-f.done
	return f.entry, f.err
}
