package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"familydose/internal/config"
	"familydose/internal/database"
	"familydose/internal/logger"
	"familydose/internal/repository"
	"familydose/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	exportConnect := exportCmd.String("connect", "", "Export only the household with this connect code (default: all)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		if err := runExport(*exportOutput, *exportConnect); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func runExport(outputPath, connect string) error {
	cfg := config.Load()

	log, err := logger.Init(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	clock := clockwork.NewRealClock()
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", clock.Now().Format("20060102_150405"))
	}

	// Ensure directory exists
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	backupService := service.NewBackupService(repository.New(db), clock, cfg.DatabaseType, log)

	start := time.Now()
	log.Info("exporting", zap.String("path", outputPath), zap.String("connect", connect))
	if err := backupService.ExportFile(ctx, outputPath, connect); err != nil {
		return err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}
	log.Info("export complete",
		zap.Float64("size_mb", float64(info.Size())/1024/1024),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func printUsage() {
	fmt.Println("FamilyDose Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [-output file.json] [-connect CODE]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  backup export")
	fmt.Println("  backup export -output backups/nightly.json")
	fmt.Println("  backup export -connect AB12CD34")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, sqlite-pure, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familydose.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
