package series

// Iterator is a pull-based stream of samples. Implementations yield samples
// lazily so that arbitrarily long intervals can be consumed with O(1)
// samples resident in memory.
//
// Usage follows the bufio.Scanner pattern: call Next, read Sample, check
// Err once Next returns false. Close must be called on every exit path so
// that underlying resources (file handles, transactions) are released even
// when the consumer aborts mid-stream.
type Iterator interface {
	// Next advances to the next sample. It returns false when the stream
	// is exhausted or an error occurred.
	Next() bool

	// Sample returns the current sample. Only valid after a true Next.
	Sample() Sample

	// Err returns the first error encountered, if any.
	Err() error

	// Close releases resources held by the iterator. Safe to call more
	// than once.
	Close() error
}

// sliceIterator yields samples from an in-memory slice.
type sliceIterator struct {
	samples []Sample
	pos     int
}

// NewSliceIterator returns an Iterator over the given samples. The slice is
// not copied; callers must not mutate it while iterating.
func NewSliceIterator(samples []Sample) Iterator {
	return &sliceIterator{samples: samples, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.samples) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Sample() Sample { return it.samples[it.pos] }
func (it *sliceIterator) Err() error     { return nil }
func (it *sliceIterator) Close() error   { return nil }

// decimatingIterator keeps the first of every step samples from the wrapped
// iterator and skips the rest.
type decimatingIterator struct {
	inner Iterator
	step  int
	count int
}

// Decimate wraps an iterator so that only every step-th sample is yielded,
// starting with the first. A step of zero or one returns the iterator
// unchanged.
func Decimate(it Iterator, step int) Iterator {
	if step <= 1 {
		return it
	}
	return &decimatingIterator{inner: it, step: step}
}

func (it *decimatingIterator) Next() bool {
	for it.inner.Next() {
		keep := it.count%it.step == 0
		it.count++
		if keep {
			return true
		}
	}
	return false
}

func (it *decimatingIterator) Sample() Sample { return it.inner.Sample() }
func (it *decimatingIterator) Err() error     { return it.inner.Err() }
func (it *decimatingIterator) Close() error   { return it.inner.Close() }
