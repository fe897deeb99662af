package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
)

// audio chunk info
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// settings for audio compression
type CompressionOptions struct {
	Format     string // Output format (mp3, aac, wav, flac)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate (e.g., "64k", "128k")
}

// defaults for transcription uploads
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

func (o CompressionOptions) kwargs() ffmpeggo.KwArgs {
	kwargs := ffmpeggo.KwArgs{
		"vn": "",           // No video
		"ar": o.SampleRate, // Sample rate
		"ac": o.Channels,   // Channels
	}

	switch o.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	case "flac":
		kwargs["acodec"] = "flac"
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if o.Bitrate != "" && (o.Format == "mp3" || o.Format == "aac" || o.Format == "") {
		kwargs["b:a"] = o.Bitrate
	}
	return kwargs
}

// duration of an audio/video file
func GetDuration(ctx context.Context, bin ffmpeg.BinaryPaths, filePath string) (time.Duration, error) {
	info, err := ffmpeg.Probe(ctx, bin, filePath)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// re-encodes the audio track of inputPath into a small mono file for upload
func CompressAudio(
	ctx context.Context,
	bin ffmpeg.BinaryPaths,
	inputPath, outputPath string,
	opts CompressionOptions,
	sink logging.Sink,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stream := ffmpeggo.Input(inputPath).Output(outputPath, opts.kwargs())
	if err := ffmpeg.Run(ctx, stream, bin, sink); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return nil
}

// PlanChunks splits total into consecutive windows of at most chunk,
// named after audioPath inside outputDir.
func PlanChunks(audioPath string, total, chunk time.Duration, outputDir string) []ChunkInfo {
	if chunk <= 0 || total <= 0 {
		return nil
	}

	ext := filepath.Ext(audioPath)
	baseName := strings.TrimSuffix(filepath.Base(audioPath), ext)

	var chunks []ChunkInfo
	for i := 0; ; i++ {
		start := time.Duration(i) * chunk
		if start >= total {
			break
		}
		end := min(start+chunk, total)
		chunks = append(chunks, ChunkInfo{
			Path:      filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d%s", baseName, i, ext)),
			Index:     i,
			StartTime: start,
			EndTime:   end,
		})
	}
	return chunks
}

// ChunkAudio cuts audioPath into chunkDuration pieces with at most
// concurrency ffmpeg processes at once. Chunks come back in index order.
func ChunkAudio(
	ctx context.Context,
	bin ffmpeg.BinaryPaths,
	audioPath string,
	chunkDuration time.Duration,
	outputDir string,
	concurrency int,
	sink logging.Sink,
) ([]ChunkInfo, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	totalDuration, err := GetDuration(ctx, bin, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := PlanChunks(audioPath, totalDuration, chunkDuration, outputDir)
	logging.Infof(sink, "splitting %s into %d chunks", filepath.Base(audioPath), len(jobs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		chunks   []ChunkInfo
		firstErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Go(func() {
				defer func() { <-sem }()

				stream := ffmpeggo.Input(audioPath, ffmpeggo.KwArgs{"ss": job.StartTime.Seconds()}).
					Output(job.Path, ffmpeggo.KwArgs{
						"t": (job.EndTime - job.StartTime).Seconds(),
						"c": "copy", // Copy codec for speed
					})
				err := ffmpeg.Run(ctx, stream, bin, logging.Discard)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("failed to create chunk %d: %w", job.Index, err)
						cancel()
					}
					return
				}
				chunks = append(chunks, job)
			})
		}
	}
	wg.Wait()

	if firstErr != nil {
		_ = CleanupChunks(chunks)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		_ = CleanupChunks(chunks)
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
	return chunks, nil
}

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
		".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
		".mpeg": true, ".mpg": true, ".3gp": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".aac": true, ".flac": true,
		".ogg": true, ".m4a": true, ".wma": true, ".aiff": true,
	}
)

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, chunk := range chunks {
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
