package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
	"github.com/jhelwig/seneschal-program-sub001/internal/output"
)

func newImportCmd() *cobra.Command {
	var accessTags []string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Queue one or more documents for ingestion",
		Long: `Validates each file (format, size, content hash) and inserts it into
the document store as pending. The running document worker picks up
pending documents and extracts, chunks, and embeds them; this command
does not wait for that to finish.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, accessTags)
		},
	}
	cmd.Flags().StringSliceVar(&accessTags, "access-tag", nil, "Access tag required to retrieve chunks/images from this document (repeatable)")
	return cmd
}

func runImport(cmd *cobra.Command, paths []string, accessTags []string) error {
	out := output.New(cmd.OutOrStdout())
	ctx := cmd.Context()

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := dbstore.Open(cfg.DBPath(), cfg.Storage.SQLiteCacheMB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	var failures int
	for _, path := range paths {
		if err := importOne(ctx, store, cfg, path, accessTags, out); err != nil {
			out.Error(fmt.Sprintf("%s: %s", path, err))
			failures++
			continue
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed to import", failures, len(paths))
	}
	return nil
}

func importOne(ctx context.Context, store *dbstore.Store, cfg *config.Config, path string, accessTags []string, out *output.Writer) error {
	precheck, err := ingest.PrecheckFile(path, cfg.Ingestion.MaxFileSizeBytes)
	if err != nil {
		return err
	}

	if existing, err := store.GetDocumentBySHA256(ctx, precheck.SHA256); err == nil && existing != nil {
		out.Status("", fmt.Sprintf("%s already imported as %q (skipping)", path, existing.Title))
		return nil
	}

	docID := uuid.NewString()
	storedPath, err := ingest.StoreContent(path, cfg.DocumentsDir(), docID, precheck.Filename)
	if err != nil {
		return err
	}

	title := strings.TrimSuffix(precheck.Filename, filepath.Ext(precheck.Filename))
	doc := &dbstore.Document{
		ID:         docID,
		Title:      title,
		Filename:   precheck.Filename,
		Format:     string(precheck.Format),
		SHA256:     precheck.SHA256,
		SizeBytes:  precheck.SizeBytes,
		SourcePath: storedPath,
		AccessTags: accessTags,
	}

	if err := store.InsertDocument(ctx, doc); err != nil {
		return err
	}

	out.Success(fmt.Sprintf("%s queued for ingestion (id: %s)", path, doc.ID))
	return nil
}
