package ffmpeg

import (
	"context"
	"fmt"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap/zapcore"

	"github.com/mgpai22/clipcut/internal/logging"
)

// Run executes a compiled ffmpeg-go stream with the resolved binary,
// streaming its console output line by line into sink. Cancelling ctx
// kills the process.
func Run(ctx context.Context, stream *ffmpeggo.Stream, bin BinaryPaths, sink logging.Sink) error {
	if sink == nil {
		sink = logging.Discard
	}

	cmd := stream.OverWriteOutput().SetFfmpegPath(bin.FFmpeg).Compile()

	out := logging.NewLineWriter(sink, zapcore.InfoLevel)
	defer out.Flush()
	cmd.Stdout = out
	cmd.Stderr = out

	logging.Infof(sink, "running %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return ctx.Err()
	}
}
