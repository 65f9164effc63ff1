// Package pg provides PostgreSQL connection management built on pgx: a pooled
// Connect with startup retry, goose-based schema migrations, a readiness
// healthcheck, error classification helpers, and context helpers for
// propagating a transaction through application layers.
//
// Typical startup:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, logger); err != nil {
//		log.Fatal(err)
//	}
//
// Error classification:
//
//	if pg.IsDuplicateKeyError(err) {
//		// unique constraint violation
//	}
//
// The healthcheck function plugs into readiness probes:
//
//	readiness := pg.Healthcheck(pool)
package pg
