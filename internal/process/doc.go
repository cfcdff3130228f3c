// Package process supervises a single long-running subprocess.
//
// Process wraps os/exec with:
//   - Graceful shutdown with SIGINT and configurable timeout
//   - Force kill of the whole process group if graceful shutdown times out
//   - A stdout consumer for binary output and line-based stderr logging
//     with pluggable level parsing
//   - Restart with new arguments for configuration changes
//   - State change callbacks (idle, starting, running, stopping, error)
//
// Example:
//
//	p := process.NewProcess("camera", []string{"ffmpeg", "-i", "in", "-f", "mjpeg", "pipe:1"}, logger)
//	p.SetStdoutConsumer(func(r io.Reader) error {
//	    _, err := io.Copy(sink, r)
//	    return err
//	})
//	exitCode := p.RunWithRestart(ctx)
package process
