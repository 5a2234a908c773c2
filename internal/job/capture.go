package job

// drainCapture blocks reading j's capture pipe until it hits EOF (the
// last stage, and every fork that inherited the write end, has exited),
// appending every chunk read to the job's captured-output buffer, up to
// the manager's configured CaptureBufferLimit. Reads past the limit are
// still consumed (so the producing process is never blocked writing to a
// full pipe), just not retained. It never closes the read end itself —
// that is Expunge's job — so the fd stays valid for any GetOutput call
// that arrives after this goroutine has already returned.
func (m *Manager) drainCapture(j *Job) {
	buf := make([]byte, 32*1024)
	for {
		n, err := j.captureR.Read(buf)
		if n > 0 {
			j.mu.Lock()
			chunk := buf[:n]
			if limit := m.captureCap; limit > 0 {
				if room := limit - len(j.captured); room > 0 {
					if room < len(chunk) {
						chunk = chunk[:room]
					}
					j.captured = append(j.captured, chunk...)
				}
			} else {
				j.captured = append(j.captured, chunk...)
			}
			j.mu.Unlock()
			m.wake()
		}
		if err != nil {
			return
		}
	}
}
