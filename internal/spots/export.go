package spots

import (
	"sync"

	"github.com/rs/zerolog"

	"spot-batch/internal/pyramid"
)

// Exporter materializes missing tiles through the image server. One failed
// tile is logged and skipped; it never aborts the batch, the tile is simply
// absent from later result lookup.
type Exporter struct {
	Server  pyramid.ImageServer
	Cache   *TileCache
	Threads int
	Log     zerolog.Logger
}

// Export writes the given tiles for one channel and returns those that were
// written successfully. With Threads > 1 tiles are exported by a bounded
// set of workers; filenames are distinct so the workers share the cache
// directory without coordination.
func (e *Exporter) Export(tiles []Tile, channel int) []Tile {
	if len(tiles) == 0 {
		return nil
	}

	if e.Threads > 1 {
		return e.exportParallel(tiles, channel)
	}

	var done []Tile
	for _, t := range tiles {
		if e.exportOne(t, channel) {
			done = append(done, t)
		}
	}
	return done
}

func (e *Exporter) exportParallel(tiles []Tile, channel int) []Tile {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done []Tile
	)
	sem := make(chan struct{}, e.Threads)
	for _, t := range tiles {
		wg.Add(1)
		sem <- struct{}{}
		go func(t Tile) {
			defer wg.Done()
			defer func() { <-sem }()
			if e.exportOne(t, channel) {
				mu.Lock()
				done = append(done, t)
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()
	return done
}

func (e *Exporter) exportOne(t Tile, channel int) bool {
	req := pyramid.TileRequest{
		Region:  t.Region,
		Channel: channel,
		ZStart:  t.ZStart,
		ZEnd:    t.ZEnd,
		Format:  e.Cache.Format,
		Path:    e.Cache.TilePath(t.Key),
	}
	if err := pyramid.WriteTile(e.Server, req); err != nil {
		e.Log.Warn().Err(err).Str("tile", t.Key).Msg("Tile export failed, skipping")
		return false
	}
	e.Log.Debug().Str("tile", t.Key).Msg("Exported tile")
	return true
}
