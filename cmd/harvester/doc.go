// Package main hosts the notice harvester entrypoint.
//
// Architecture overview:
//   - Discovery: internal/discovery resolves the configured portal targets
//     into institutions and sub-units, choosing a strategy per target kind
//     (rendered menus captured via headless Chrome, static directory pages,
//     and graduate umbrella listings). Board listing URL templates are
//     resolved per sub-unit, with a manual override table as a backstop.
//   - Harvest: internal/controller walks each (sub-unit, board) pair's
//     listing pages newest-first, stopping at the stored high-water mark, and
//     persists everything above it. Extraction tries a structured API read
//     first and falls back to a markup selector cascade.
//   - Persistence: internal/store keeps the three-level hierarchy and the
//     append-only notice records in Postgres via pgx; goose migrations run at
//     startup. Re-running a harvest is a no-op thanks to the composite
//     uniqueness constraint on (sub_unit_id, board_type, post_id).
//   - Fanout: inserted batches are published to Pub/Sub when a project is
//     configured. Pages that defeat the whole selector cascade can be
//     archived to a local directory or a GCS bucket for selector debugging.
//   - Configuration & plumbing: Viper populates config from file and
//     HARVESTER_* env vars; zap provides structured logging; Prometheus
//     metrics and a small read-only browse API are served over chi.
//
// Run locally: go run ./cmd/harvester -config config.yaml, or pass
// -discover-only to refresh the hierarchy without harvesting.
package main
