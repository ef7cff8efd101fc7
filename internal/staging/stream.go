package staging

import "sync"

// Stream executes submitted transfer jobs in order on a single background
// goroutine, modelling an asynchronous copy stream. Each shard writer owns
// at most one stream; pipelining happens between the stream and its owning
// goroutine, never across writers.
type Stream struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// NewStream starts a stream ready to accept jobs.
func NewStream() *Stream {
	s := &Stream{jobs: make(chan func(), 128)}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Stream) run() {
	defer s.wg.Done()
	for job := range s.jobs {
		job()
	}
}

// Submit enqueues a job. Jobs run in submission order.
func (s *Stream) Submit(job func()) {
	s.jobs <- job
}

// Synchronize blocks until every previously submitted job has completed.
func (s *Stream) Synchronize() {
	done := make(chan struct{})
	s.jobs <- func() { close(done) }
	<-done
}

// Close waits for outstanding jobs and releases the stream's goroutine.
// The stream must not be used after Close.
func (s *Stream) Close() {
	close(s.jobs)
	s.wg.Wait()
}
