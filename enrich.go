package ledgeridx

import (
	"context"
	"log/slog"
)

// Enrich classifies the mints of listed metadata that have not been seen
// yet. Metadata whose mint turns out to be fungible drops out of the listed
// indices. Fetch failures are logged and skipped; only context errors are
// returned.
func (e *Engine) Enrich(ctx context.Context) error {
	if e.live.Load() == nil {
		return ErrNotReady
	}
	if e.opt.MintFetcher == nil {
		return nil
	}

	missing := e.unclassifiedMints()
	size := e.opt.EnrichBatchSize
	var reindexed, fetched int
	for len(missing) > 0 {
		batch := missing[:min(size, len(missing))]
		missing = missing[len(batch):]

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		recs, err := e.opt.MintFetcher.FetchAccounts(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			EnrichedBatches.WithLabelValues("error").Inc()
			e.logger.LogAttrs(ctx, slog.LevelWarn, "ledgeridx: mint batch failed", slog.Int("size", len(batch)), slog.Any("err", err))
			continue
		}

		mints := make([]*MintInfo, 0, len(batch))
		for i, rec := range recs {
			if i >= len(batch) || rec == nil {
				continue
			}
			mi, err := DecodeMint(batch[i], rec.Data)
			if err != nil {
				e.logger.LogAttrs(ctx, slog.LevelDebug, "ledgeridx: bad mint", slog.String("mint", batch[i].String()), slog.Any("err", err))
				continue
			}
			mints = append(mints, mi)
		}
		fetched += len(mints)
		// a reload may have published a new store in the meantime
		reindexed += e.live.Load().PutMints(mints)
		EnrichedBatches.WithLabelValues("ok").Inc()
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "ledgeridx: enriched", slog.Int("mints", fetched), slog.Int("reindexed", reindexed))
	return nil
}

func (e *Engine) unclassifiedMints() []Pubkey {
	v := e.live.Load().View()
	seen := make(map[Pubkey]bool)
	var result []Pubkey
	for _, m := range v.ListedMetadata() {
		mint := m.Info.Mint
		if seen[mint] || v.Mint(mint) != nil {
			continue
		}
		seen[mint] = true
		result = append(result, mint)
	}
	return result
}
