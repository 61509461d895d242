package ingestion

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// IngestAll は複数ファイルを順に（concurrency > 1 の場合は並列に）インジェストする。
// 1件の失敗は他のファイルの処理を止めない。observe には各ファイルのイベントが順序通りに渡される。
func (s *Service) IngestAll(ctx context.Context, reqs []Request, concurrency int, observe func(index int, ev Event)) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			results[i] = s.ingestObserved(ctx, i, req, observe)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) ingestObserved(ctx context.Context, index int, req Request, observe func(int, Event)) BatchResult {
	var events chan Event
	done := make(chan struct{})

	if observe != nil {
		events = make(chan Event, 16)
		go func() {
			defer close(done)
			for ev := range events {
				observe(index, ev)
			}
		}()
	} else {
		close(done)
	}

	result, err := s.Ingest(ctx, req, events)

	if events != nil {
		close(events)
	}
	<-done

	return BatchResult{
		Index:  index,
		Name:   req.File.Name,
		Result: result,
		Err:    err,
	}
}
