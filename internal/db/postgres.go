// Package db opens the gateway's PostgreSQL pools and runs control-schema
// migrations.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPools opens the two connection pools the gateway uses: the application
// role for the structured path and control schema, and the
// privilege-restricted read-only role for ad-hoc queries. The inspector role
// cannot write, create, or drop anything at the engine level — defense in
// depth beneath the AST checks, not a replacement for them.
func OpenPools(ctx context.Context, appDSN, inspectorDSN string) (app, inspector *pgxpool.Pool, err error) {
	app, err = pgxpool.New(ctx, appDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open application pool: %w", err)
	}
	if err = app.Ping(ctx); err != nil {
		app.Close()
		return nil, nil, fmt.Errorf("ping application pool: %w", err)
	}

	inspector, err = pgxpool.New(ctx, inspectorDSN)
	if err != nil {
		app.Close()
		return nil, nil, fmt.Errorf("open inspector pool: %w", err)
	}
	if err = inspector.Ping(ctx); err != nil {
		app.Close()
		inspector.Close()
		return nil, nil, fmt.Errorf("ping inspector pool: %w", err)
	}
	return app, inspector, nil
}
