package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soaringjerry/dronerecon/internal/fault"
	"github.com/soaringjerry/dronerecon/internal/models"
	"github.com/soaringjerry/dronerecon/internal/services"
)

// stimulusPrefixes maps file-name prefixes onto catalog uses for --all.
var stimulusPrefixes = []struct {
	prefix string
	use    string
}{
	{"0-", services.UseTask},
	{"training_", services.UseTutorial},
	{"schematic_", services.UseSchematic},
	{"feedback_", services.UseFeedback},
}

func validUse(use string) bool {
	switch use {
	case services.UseTask, services.UseTutorial, services.UseSchematic, services.UseFeedback:
		return true
	}
	return false
}

// stimulusCatalog is the part of the store the import needs.
type stimulusCatalog interface {
	FindStimulus(ctx context.Context, use, name string) (*models.Stimulus, error)
	AddStimulus(ctx context.Context, st *models.Stimulus) error
}

type importResult struct {
	Added   []string
	Skipped []string
}

// scanStimuli returns the .png file names in dir that start with prefix, sorted.
func scanStimuli(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stimulus dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".png") || !strings.HasPrefix(name, prefix) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// importStimuli registers files under use. A name or image already in the catalog is skipped.
func importStimuli(ctx context.Context, catalog stimulusCatalog, files []string, use string) (*importResult, error) {
	res := &importResult{}
	for _, file := range files {
		name, _, _ := strings.Cut(file, ".")
		_, err := catalog.FindStimulus(ctx, use, name)
		if err == nil {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if !errors.Is(err, fault.ErrNotFound) {
			return res, err
		}
		st := &models.Stimulus{ID: uuid.NewString(), Name: name, Use: use, Image: "images/" + file}
		if err := catalog.AddStimulus(ctx, st); err != nil {
			if errors.Is(err, fault.ErrUniqueViolation) {
				res.Skipped = append(res.Skipped, name)
				continue
			}
			return res, fmt.Errorf("add stimulus %s: %w", name, err)
		}
		res.Added = append(res.Added, name)
	}
	return res, nil
}

func newStimuliCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stimuli",
		Short: "Manage the stimulus catalog",
	}
	cmd.AddCommand(newStimuliImportCommand(ctx))
	cmd.AddCommand(newStimuliListCommand(ctx))
	return cmd
}

func newStimuliImportCommand(ctx *commandContext) *cobra.Command {
	var dir, prefix, use string
	var all bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Register stimulus images from a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return errors.New("--dir is required")
			}
			type batch struct{ prefix, use string }
			var batches []batch
			if all {
				for _, p := range stimulusPrefixes {
					batches = append(batches, batch{p.prefix, p.use})
				}
			} else {
				if !validUse(use) {
					return fmt.Errorf("--use must be one of task, tutorial, schematic, feedback (got %q)", use)
				}
				batches = append(batches, batch{prefix, use})
			}

			log, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, b := range batches {
				files, err := scanStimuli(dir, b.prefix)
				if err != nil {
					return err
				}
				res, err := importStimuli(cmd.Context(), store, files, b.use)
				if err != nil {
					return err
				}
				log.Info("stimuli imported", "use", b.use, "prefix", b.prefix, "added", len(res.Added), "skipped", len(res.Skipped))
				fmt.Fprintf(out, "%s: %d added, %d already present\n", b.use, len(res.Added), len(res.Skipped))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory containing the .png stimuli")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only import files starting with this prefix")
	cmd.Flags().StringVar(&use, "use", "", "Catalog use: task, tutorial, schematic or feedback")
	cmd.Flags().BoolVar(&all, "all", false, "Import every use by its file-name prefix")
	cmd.MarkFlagsMutuallyExclusive("all", "use")
	return cmd
}

func newStimuliListCommand(ctx *commandContext) *cobra.Command {
	var use, format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued stimuli",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var stimuli []*models.Stimulus
			if use != "" {
				stimuli, err = store.ListStimuliByUse(cmd.Context(), use)
			} else {
				stimuli, err = store.ListStimuli(cmd.Context())
			}
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd, stimuli)
			}
			tasks := services.NewTaskService(cfg, store)
			rows := make([][]string, 0, len(stimuli))
			for _, st := range stimuli {
				rows = append(rows, []string{st.Name, st.Use, tasks.StimulusURL(st)})
			}
			return writeRows(cmd, format, []string{"Name", "Use", "URL"}, rows, nil)
		},
	}
	cmd.Flags().StringVar(&use, "use", "", "Only list one use")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, csv or json")
	return cmd
}
