package coupler

// unbounded forwards in to the returned channel through a growing queue, so
// the engine's stdout reader never blocks on a slow consumer. The returned
// channel is closed after in is closed and the queue has drained, or as soon
// as done is closed.
func unbounded(in <-chan string, done <-chan struct{}) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		var queue []string
		for in != nil || len(queue) > 0 {
			var send chan string
			var next string
			if len(queue) > 0 {
				send, next = out, queue[0]
			}
			select {
			case line, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				queue = append(queue, line)
			case send <- next:
				queue[0] = ""
				queue = queue[1:]
			case <-done:
				return
			}
		}
	}()
	return out
}
