package search

import (
	"context"

	"github.com/rs/zerolog"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
// Meilisearch hits are re-checked against the caller's permissions because the
// external index is not access-aware.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	access AccessChecker
	log    zerolog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS, access AccessChecker, log zerolog.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, access: access, log: log}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, _, err := s.meili.Search(q)
		if err == nil {
			filtered := s.filterReadable(ctx, q.UserID, results)
			return Response{Results: filtered, Total: len(filtered), Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to pgfts")
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Msg("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNote pushes a note into Meilisearch (fire-and-forget).
func (s *Service) IndexNote(record NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexNote(record); err != nil {
			s.log.Warn().Str("note_id", record.ID).Err(err).Msg("index note failed")
		}
	}()
}

// DeleteNote removes a note from Meilisearch (fire-and-forget).
func (s *Service) DeleteNote(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			s.log.Warn().Str("note_id", id).Err(err).Msg("delete note from index failed")
		}
	}()
}

// ReindexAllFromPG reads every note from PostgreSQL and pushes the batch to
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.meili.IndexNotes(records); err != nil {
		s.log.Error().Err(err).Msg("reindex notes failed")
	}
}

func (s *Service) filterReadable(ctx context.Context, userID string, results []Result) []Result {
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if s.access != nil && !s.access.CanReadNote(ctx, userID, result.ID) {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
