package transcribe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mgpai22/clipcut/internal/audio"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// holds the result of transcribing a chunk
type chunkResult struct {
	Index      int
	Utterances []subtitle.Utterance
	Error      error
}

// transcribes a single chunk and shifts its timestamps by the chunk offset
func transcribeChunk(
	ctx context.Context,
	t Transcriber,
	chunk audio.ChunkInfo,
) ([]subtitle.Utterance, error) {
	result, err := t.Transcribe(ctx, chunk.Path)
	if err != nil {
		return nil, err
	}

	adjusted := make([]subtitle.Utterance, len(result.Utterances))
	for i, u := range result.Utterances {
		adjusted[i] = subtitle.Utterance{
			Start: u.Start + chunk.StartTime,
			End:   u.End + chunk.StartTime,
			Text:  u.Text,
		}
	}
	return adjusted, nil
}

// TranscribeChunks runs t over chunks with a fixed pool of workers and
// merges the utterances back in chunk order. The first failure cancels
// the remaining work.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.ChunkInfo,
	concurrency int,
	sink logging.Sink,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	if sink == nil {
		sink = logging.Discard
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan audio.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case chunk, ok := <-workChan:
					if !ok {
						return
					}
					utterances, err := transcribeChunk(ctx, t, chunk)
					if err != nil {
						cancel()
					}
					resultChan <- chunkResult{
						Index:      chunk.Index,
						Utterances: utterances,
						Error:      err,
					}
				}
			}
		})
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		results = append(results, result)
		logging.Infof(sink, "transcribed chunk %d/%d", len(results), len(chunks))
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(results) != len(chunks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("only %d of %d chunks transcribed", len(results), len(chunks))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	var all []subtitle.Utterance
	for _, r := range results {
		all = append(all, r.Utterances...)
	}

	return &Result{
		Utterances: all,
		Duration:   chunks[len(chunks)-1].EndTime,
	}, nil
}
