package pipeline

// ProgressEvent reports pipeline advancement. Percentage values across one
// extraction are non-decreasing and end with exactly one terminal event at
// 100.
type ProgressEvent struct {
	State      State
	Percentage int
	// Page and TotalPages are set for page-granular stages, zero otherwise.
	Page       int
	TotalPages int
}

// progressSink fans events out to the caller's callback without ever
// blocking the pipeline. Events go through a buffered channel drained by a
// single goroutine; when the consumer cannot keep up, intermediate events
// are dropped. The terminal event is emitted by finish.
type progressSink struct {
	ch   chan ProgressEvent
	done chan struct{}
	last int
}

func newProgressSink(onProgress func(ProgressEvent)) *progressSink {
	s := &progressSink{
		ch:   make(chan ProgressEvent, 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.ch {
			if onProgress != nil {
				onProgress(ev)
			}
		}
	}()
	return s
}

// emit queues an event. Percentages below the last accepted one are lifted
// to it so the stream stays monotonic even when stages overlap estimates.
func (s *progressSink) emit(state State, pct, page, total int) {
	if pct > 99 {
		pct = 99 // 100 is reserved for the terminal event
	}
	if pct < s.last {
		pct = s.last
	}
	s.last = pct
	select {
	case s.ch <- ProgressEvent{State: state, Percentage: pct, Page: page, TotalPages: total}:
	default:
	}
}

// finish sends the terminal event and waits for the drain goroutine to
// deliver everything still buffered. Extraction work is already complete by
// the time finish runs, so this wait cannot stall a page.
func (s *progressSink) finish() {
	s.ch <- ProgressEvent{State: StateDone, Percentage: 100}
	close(s.ch)
	<-s.done
}
