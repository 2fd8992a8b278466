package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"

	"explorer/internal/config"
	"explorer/internal/domain/services"
	"explorer/internal/repository/postgres"
	"explorer/internal/service"

	"github.com/joho/godotenv"
)

var (
	rootFolderNames = []string{"Documents", "Downloads", "Pictures", "Music", "Videos", "Desktop", "Projects"}
	folderNames     = []string{"Projects", "Reports", "Archive", "Backup", "Templates", "Resources", "Assets", "Data", "Config", "Logs"}
	fileNames       = []string{"report", "document", "notes", "data", "summary", "analysis", "presentation", "draft", "final", "backup"}
	fileExtensions  = []string{"txt", "pdf", "doc", "docx", "xls", "xlsx", "jpg", "png", "mp3", "mp4", "zip", "json", "xml", "csv", "html"}
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop the folders table before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed rows")
	clearData := flag.Bool("clear-data", false, "Delete all rows (keep schema)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage != "postgres" {
		log.Fatalf("seed requires STORAGE=postgres (got %q)", cfg.Storage)
	}

	// Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger, logCloser := config.NewLogger(cfg)
	defer logCloser.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping folders table...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	log.Println("Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	log.Printf("Clearing existing rows in %s...", tables.Folders)
	if err := postgres.ClearData(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	if *clearData {
		log.Println("Data cleared successfully")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderService := service.NewFolderService(
		postgres.NewFolderStore(repoConfig),
		postgres.NewTransactionManager(pool, logger),
		cfg.Pagination,
		logger,
	)

	s := &seeder{ctx: ctx, svc: folderService}
	if err := s.run(); err != nil {
		log.Fatalf("Seed failed after %d rows: %v", s.rows, err)
	}

	log.Printf("Database seeded with %d rows", s.rows)
}

// seeder builds roots, two levels of subfolders and files through the folder
// service so every row passes the same validation as API writes
type seeder struct {
	ctx  context.Context
	svc  services.FolderWriter
	rows int
}

func (s *seeder) run() error {
	for _, name := range rootFolderNames {
		root, err := s.create(name, nil, true)
		if err != nil {
			return err
		}

		for i := range 7 + rand.IntN(3) {
			sub, err := s.create(fmt.Sprintf("%s_%d", pick(folderNames), i+1), &root, true)
			if err != nil {
				return err
			}

			for j := range 2 {
				nested, err := s.create(fmt.Sprintf("%s_%d", pick(folderNames), j+1), &sub, true)
				if err != nil {
					return err
				}
				if err := s.files(nested, 5+rand.IntN(2)); err != nil {
					return err
				}
			}

			if err := s.files(sub, 6+rand.IntN(2)); err != nil {
				return err
			}
		}

		if err := s.files(root, 4+rand.IntN(2)); err != nil {
			return err
		}
		log.Printf("Seeded %s (%d rows so far)", name, s.rows)
	}
	return nil
}

func (s *seeder) files(parentID int64, n int) error {
	for range n {
		name := fmt.Sprintf("%s_%d.%s", pick(fileNames), rand.IntN(100), pick(fileExtensions))
		if _, err := s.create(name, &parentID, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) create(name string, parentID *int64, isContainer bool) (int64, error) {
	folder, err := s.svc.Create(s.ctx, &services.CreateFolderRequest{
		Name:        name,
		ParentID:    parentID,
		IsContainer: isContainer,
	})
	if err != nil {
		return 0, fmt.Errorf("create %q: %w", name, err)
	}
	s.rows++
	return folder.ID, nil
}

func pick(items []string) string {
	return items[rand.IntN(len(items))]
}
