package varlake

import "context"

// BatchIterator walks the batches of one result set in the manner of
// bufio.Scanner:
//
//	it := session.Batches(ctx, query)
//	for it.Next() {
//		use(it.Batch())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// The first Next restarts the session's result set; each further Next
// fetches one more batch. Once the engine reports completion the
// iterator stops issuing units, so an iterator built on an already
// completed session yields nothing.
type BatchIterator struct {
	session *ReadSession
	ctx     context.Context
	query   Query

	batch   *Table
	err     error
	started bool
	done    bool
}

// Next advances to the next batch. It returns false when the result set
// is exhausted or a fetch failed; Err distinguishes the two.
func (it *BatchIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		if it.session.Completed() {
			it.done = true
			return false
		}
		it.batch, it.err = it.session.Read(it.ctx, it.query)
	} else {
		if it.session.Completed() {
			it.batch = nil
			it.done = true
			return false
		}
		it.batch, it.err = it.session.ContinueRead(it.ctx)
	}
	if it.err != nil {
		it.batch = nil
		it.done = true
		return false
	}
	return true
}

// Batch returns the batch fetched by the last successful Next.
func (it *BatchIterator) Batch() *Table { return it.batch }

// Err returns the error that stopped iteration, if any.
func (it *BatchIterator) Err() error { return it.err }
