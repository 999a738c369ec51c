package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/frahmantamala/datashare/internal/gateway/postgres"
	"github.com/frahmantamala/datashare/internal/ingest"
	"github.com/frahmantamala/datashare/internal/store"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a CSV or XLSX file into a project",
	Long:  `Parse a file and replace the project's columns and rows with it, acting as the given user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context())
	},
}

var (
	ingestProjectID int64
	ingestFile      string
	ingestAs        string
	ingestTimeout   time.Duration
)

func runIngest(ctx context.Context) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(ingestFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ingestFile, err)
	}
	if cfg.Upload.MaxBytes > 0 && int64(len(data)) > cfg.Upload.MaxBytes {
		return fmt.Errorf("%s is %d bytes; the upload limit is %d", ingestFile, len(data), cfg.Upload.MaxBytes)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		return fmt.Errorf("failed to init gorm: %w", err)
	}

	lg := logger.LoggerWrapper()
	gw := postgres.NewGateway(gormDB, db)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	actor, err := gw.GetUserByEmail(ctx, ingestAs)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", ingestAs, err)
	}

	session := store.New(gw, lg, store.WithFetchConcurrency(cfg.Projects.FetchConcurrency))
	session.SetIdentity(actor.Caller())

	result, err := ingest.NewPipeline(lg).Ingest(ctx, session, ingestProjectID, filepath.Base(ingestFile), data)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d columns and %d rows (%s) into project %d\n", result.Columns, result.Rows, result.Format, result.Project.ID)
	return nil
}

func init() {
	ingestCmd.Flags().Int64Var(&ingestProjectID, "project", 0, "Project id to load the file into")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Path to a .csv or .xlsx file")
	ingestCmd.Flags().StringVar(&ingestAs, "as", "padil@mail.com", "Email of the user performing the upload")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 2*time.Minute, "Time limit for the whole ingestion")
	_ = ingestCmd.MarkFlagRequired("project")
	_ = ingestCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(ingestCmd)
}
