// Package channels holds small helpers around Go channels used by the scheduler loop.
package channels

// CloseChannelIgnorePanic closes a channel like normal.
// However, if the channel has already been closed,
// it will suppress the resulting panic.
func CloseChannelIgnorePanic[T any](ch chan<- T) {
	if ch == nil {
		return
	}

	defer func() {
		// Recover from panic if the channel is already closed
		_ = recover()
	}()

	close(ch)
}

// SendIgnorePanic sends a value on a channel. It reports false instead of
// panicking when the channel has already been closed.
func SendIgnorePanic[T any](ch chan<- T, value T) (sent bool) {
	if ch == nil {
		return false
	}

	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	ch <- value

	return true
}

// InfiniteChan creates a channel pair with unbounded buffering.
// Sends on the returned input never wait for the reader, which lets a
// consumer goroutine post work to itself without deadlocking. Closing the
// input drains the remaining values and then closes the output.
//
// Memory grows without bound if the sender outpaces the receiver.
func InfiniteChan[A any]() (chan<- A, <-chan A) {
	inputCh := make(chan A)
	outputCh := make(chan A)

	go func() {
		var queue []A

		in := inputCh

		// outCh disables the send case while the queue is empty.
		outCh := func() chan A {
			if len(queue) == 0 {
				return nil
			}

			return outputCh
		}

		head := func() A {
			if len(queue) == 0 {
				var zero A

				return zero
			}

			return queue[0]
		}

		for len(queue) > 0 || in != nil {
			select {
			case v, ok := <-in:
				if !ok {
					in = nil

					continue
				}

				queue = append(queue, v)
			case outCh() <- head():
				var zero A

				queue[0] = zero
				queue = queue[1:]
			}
		}

		close(outputCh)
	}()

	return inputCh, outputCh
}
