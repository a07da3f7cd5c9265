package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	"interviewoj/internal/common/storage"
	"interviewoj/internal/judge/executor/judge0"
	"interviewoj/internal/judge/harness"
	"interviewoj/internal/judge/model"
	judgeService "interviewoj/internal/judge/service"
	problemRepo "interviewoj/internal/problem/repository"
	"interviewoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultConfigPath    = "configs/judge_api.yaml"
	defaultImportTimeout = 5 * time.Minute
)

// importer uploads case packs and upserts problem rows.
type importer struct {
	database   db.Database
	packs      *problemRepo.CasePackStore
	problems   problemRepo.ProblemRepository
	packPrefix string
	// verifier is nil unless reference solutions should be judged first.
	verifier *judgeService.JudgeService
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	problemPath := flag.String("problem", "configs/problems", "Problem YAML file or directory")
	verify := flag.Bool("verify", false, "Judge every reference solution before importing")
	dryRun := flag.Bool("dry-run", false, "Validate definitions without writing anything")
	timeout := flag.Duration("timeout", defaultImportTimeout, "Overall import timeout")
	flag.Parse()

	files, err := definitionFiles(*problemPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list problem files failed: %v\n", err)
		os.Exit(1)
	}
	defs := make([]*ProblemDefinition, 0, len(files))
	for _, file := range files {
		def, err := loadDefinition(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defs = append(defs, def)
	}
	if *dryRun {
		fmt.Printf("%d problem definitions are valid\n", len(defs))
		return
	}

	cfg, err := loadImportConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	imp, cleanup, err := newImporter(cfg, *verify)
	if err != nil {
		logger.Error(ctx, "init importer failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	failed := 0
	for _, def := range defs {
		if err := imp.importProblem(ctx, def); err != nil {
			failed++
			logger.Error(ctx, "import problem failed", zap.Int64("problem_id", def.ID), zap.Error(err))
			continue
		}
		logger.Info(ctx, "problem imported", zap.Int64("problem_id", def.ID), zap.String("title", def.Title))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func newImporter(cfg *ImportConfig, verify bool) (*importer, func(), error) {
	database, err := db.Open(cfg.Database.Driver, &cfg.Database.PoolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("init database failed: %w", err)
	}
	objStorage, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("init minio failed: %w", err)
	}
	closers := []func(){func() { _ = database.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// With Redis configured, upserts evict the cached row judge-api serves.
	var problemCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init redis failed: %w", err)
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		problemCache = redisCache
	}

	packs := problemRepo.NewCasePackStore(objStorage, cfg.MinIO.Bucket, 0, 0)
	imp := &importer{
		database:   database,
		packs:      packs,
		problems:   problemRepo.NewProblemRepository(database, problemCache, packs),
		packPrefix: cfg.PackPrefix,
	}
	if verify {
		sandbox, err := judge0.New(cfg.Judge0)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init judge0 client failed: %w", err)
		}
		imp.verifier, err = judgeService.NewJudgeService(judgeService.Config{
			Executor:            sandbox,
			Builder:             harness.NewBuilder(cfg.Languages),
			CompileShortCircuit: true,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return imp, cleanup, nil
}

func (i *importer) importProblem(ctx context.Context, def *ProblemDefinition) error {
	if i.verifier != nil {
		if err := i.verifyReference(ctx, def); err != nil {
			return err
		}
	}
	key := def.PackKey(i.packPrefix)
	sum, err := i.packs.Save(ctx, key, def.HiddenCases())
	if err != nil {
		return err
	}
	return i.database.Transaction(ctx, func(tx db.Transaction) error {
		return i.problems.Upsert(ctx, tx, def.Record(key, sum))
	})
}

// verifyReference judges each reference solution in submit mode
// and requires it to be accepted.
func (i *importer) verifyReference(ctx context.Context, def *ProblemDefinition) error {
	problem := def.Problem()
	for lang, source := range def.ReferenceSolution {
		sub, err := i.verifier.Run(ctx, problem, source, lang, model.ModeSubmit)
		if err != nil {
			return fmt.Errorf("verify %s reference failed: %w", lang, err)
		}
		if !sub.Accepted() {
			return fmt.Errorf("%s reference solution got %s on %d/%d cases: %s",
				lang, sub.Status, sub.PassedCount, sub.TotalCount, sub.ErrorMessage)
		}
		logger.Info(ctx, "reference solution verified",
			zap.Int64("problem_id", def.ID),
			zap.String("language", string(lang)),
			zap.Int64("runtime_ms", sub.RuntimeMs),
		)
	}
	return nil
}
