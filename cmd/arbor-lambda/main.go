// Command arbor-lambda serves trees to API Gateway. Routes are
// /{entity}/roots, /{entity}/trees, /{entity}/nodes/{id}/descendants and
// /{entity}/nodes/{id}/tree. The configuration file is named by ARBOR_CONFIG.
package main

import (
	"context"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/arbor/internal/appconfig"
	"github.com/jacentio/arbor/internal/record"
	"github.com/jacentio/arbor/lambda"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	path := os.Getenv("ARBOR_CONFIG")
	if path == "" {
		path = "arbor.yaml"
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	logger = cfg.Logger(os.Stderr)

	ctx := context.Background()
	exec, closeExec, err := cfg.Open(ctx)
	if err != nil {
		logger.Error("failed to open executor", "driver", cfg.Driver, "error", err)
		os.Exit(1)
	}
	defer closeExec()

	repos, err := cfg.Repositories(exec, logger)
	if err != nil {
		logger.Error("failed to build repositories", "error", err)
		os.Exit(1)
	}

	router := lambda.NewRouter(logger)
	for name, repo := range repos {
		lambda.Mount(router, name, lambda.NewHandler[string, *record.Record](repo, parseID, logger))
	}

	awslambda.Start(router.Handle)
}

// parseID accepts any non-empty path segment; the database decides whether
// it names a row.
func parseID(s string) (string, error) {
	return s, nil
}
