package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kitabite/scribe/internal/author"
	"github.com/kitabite/scribe/internal/bundle"
	"github.com/kitabite/scribe/internal/config"
	"github.com/kitabite/scribe/internal/engine"
	"github.com/kitabite/scribe/internal/memory"
	"github.com/kitabite/scribe/internal/migrate"
	"github.com/kitabite/scribe/internal/reindex"
	"github.com/kitabite/scribe/internal/rewrite"
	"github.com/kitabite/scribe/internal/slug"
	"github.com/kitabite/scribe/internal/storage"
)

// --- shared helpers ---

func addAuthoringFlags(cmd *cobra.Command) {
	cmd.Flags().String("source-lang", "", "learner's base language (defaults to config)")
	cmd.Flags().String("target-lang", "", "language being taught (defaults to config)")
	cmd.Flags().String("curriculum-id", "", "folder/bundle identifier (defaults to <source>-to-<target>)")
}

// resolveAuthoring applies flag overrides on top of config and derives the
// curriculum id.
func resolveAuthoring(cmd *cobra.Command, cfg config.Config) (src, tgt, currID string) {
	src = cfg.Authoring.SourceLang
	tgt = cfg.Authoring.TargetLang
	if v, _ := cmd.Flags().GetString("source-lang"); v != "" {
		src = v
	}
	if v, _ := cmd.Flags().GetString("target-lang"); v != "" {
		tgt = v
	}
	explicit, _ := cmd.Flags().GetString("curriculum-id")
	currID = slug.CurriculumID(explicit, cfg.Authoring.CurriculumID, src, tgt)
	return src, tgt, currID
}

func newEngine(cfg config.Config) (engine.Engine, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return engine.New(cfg.Model.BaseURL, cfg.Model.APIKey), nil
}

func loadStyle(cfg config.Config) string {
	data, err := os.ReadFile(cfg.StylePath())
	if err != nil {
		return ""
	}
	return string(data)
}

func newAuthor(cmd *cobra.Command, cfg config.Config) (*author.Author, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	mem, err := memory.Load(cfg.IndexPath())
	if err != nil {
		return nil, err
	}
	src, tgt, currID := resolveAuthoring(cmd, cfg)
	return &author.Author{
		Engine:        eng,
		ChatModel:     cfg.Model.ChatModel,
		EmbedModel:    cfg.Model.EmbedModel,
		Mem:           mem,
		Style:         loadStyle(cfg),
		GeneratedRoot: cfg.Authoring.GeneratedRoot,
		CurriculumID:  currID,
		SourceLang:    src,
		TargetLang:    tgt,
	}, nil
}

func readPlanFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading curriculum %s: %w", path, err)
	}
	var plan map[string]any
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("invalid curriculum %s: %w", path, err)
	}
	return plan, nil
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// recordRun persists a run row. Failing to record never fails the command.
func recordRun(cfg config.Config, run storage.Run) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printWarning("run not recorded: %v", err)
		return
	}
	defer store.Close()
	if err := store.SaveRun(run); err != nil {
		printWarning("run not recorded: %v", err)
	}
}

// --- init-style ---

var initStyleCmd = &cobra.Command{
	Use:   "init-style",
	Short: "Seed the style memory from a reference lesson or style doc",
	RunE: func(cmd *cobra.Command, args []string) error {
		fromFile, _ := cmd.Flags().GetString("from-file")
		if fromFile == "" {
			return fmt.Errorf("--from-file is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(fromFile)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		if err := os.MkdirAll(cfg.Authoring.MemoryDir, 0o755); err != nil {
			return fmt.Errorf("creating memory directory: %w", err)
		}
		if err := os.WriteFile(cfg.StylePath(), data, 0o644); err != nil {
			return fmt.Errorf("writing style guide: %w", err)
		}

		// Create an empty index alongside, unless one already exists.
		if _, err := os.Stat(cfg.IndexPath()); errors.Is(err, os.ErrNotExist) {
			mem, err := memory.Load(cfg.IndexPath())
			if err != nil {
				return err
			}
			if err := mem.Save(); err != nil {
				return err
			}
		}

		printSuccess("Style memory initialized from %s", fromFile)
		return nil
	},
}

func init() {
	initStyleCmd.Flags().String("from-file", "", "seed lesson or style doc (md)")
}

// --- plan ---

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a curriculum plan ready for batch authoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			return fmt.Errorf("--output is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}

		src, tgt, _ := resolveAuthoring(cmd, cfg)
		levels, _ := cmd.Flags().GetInt("levels")
		modules, _ := cmd.Flags().GetInt("modules-per-level")
		lessons, _ := cmd.Flags().GetInt("lessons-per-module")
		notes, _ := cmd.Flags().GetStringArray("level-note")
		focus, _ := cmd.Flags().GetString("focus")

		printStep("Generating curriculum plan for %s -> %s...", src, tgt)
		plan, err := author.Plan(cmd.Context(), eng, cfg.Model.ChatModel, author.PlanRequest{
			SourceLang:       src,
			TargetLang:       tgt,
			Levels:           levels,
			ModulesPerLevel:  modules,
			LessonsPerModule: lessons,
			LevelNotes:       notes,
			Focus:            focus,
		})
		if err != nil {
			return err
		}

		if err := author.SavePlan(output, plan); err != nil {
			return err
		}
		printSuccess("Curriculum saved to %s", output)
		return nil
	},
}

func init() {
	planCmd.Flags().String("output", "", "where to save the generated curriculum JSON")
	planCmd.Flags().Int("levels", 4, "how many proficiency levels to include")
	planCmd.Flags().Int("modules-per-level", 4, "approximate modules per level")
	planCmd.Flags().Int("lessons-per-module", 4, "approximate lessons per module")
	planCmd.Flags().StringArray("level-note", nil, "optional guidance per level (repeatable)")
	planCmd.Flags().String("focus", "", "overall curricular focus")
	addAuthoringFlags(planCmd)
}

// --- author ---

var authorCmd = &cobra.Command{
	Use:   "author",
	Short: "Author lessons with the model",
}

var authorOneCmd = &cobra.Command{
	Use:   "one",
	Short: "Author a single lesson",
	RunE: func(cmd *cobra.Command, args []string) error {
		module, _ := cmd.Flags().GetString("module")
		lesson, _ := cmd.Flags().GetString("lesson")
		if module == "" || lesson == "" {
			return fmt.Errorf("--module and --lesson are required")
		}
		lessonSlug, _ := cmd.Flags().GetString("slug")
		brief, _ := cmd.Flags().GetString("brief")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newAuthor(cmd, cfg)
		if err != nil {
			return err
		}

		path, err := a.One(cmd.Context(), author.LessonSpec{
			Module: module,
			Title:  lesson,
			Slug:   lessonSlug,
			Brief:  brief,
		})
		if err != nil {
			return err
		}
		if err := a.Mem.Save(); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}

		printSuccess("Authored: %s", path)
		return nil
	},
}

var authorBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Author every lesson in a curriculum plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		curriculum, _ := cmd.Flags().GetString("curriculum")
		if curriculum == "" {
			return fmt.Errorf("--curriculum is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newAuthor(cmd, cfg)
		if err != nil {
			return err
		}
		plan, err := readPlanFile(curriculum)
		if err != nil {
			return err
		}

		filterModule, _ := cmd.Flags().GetString("filter-module")
		startAt, _ := cmd.Flags().GetString("start-at")

		started := time.Now()
		res, err := a.Batch(cmd.Context(), plan, author.BatchOptions{
			FilterModule: filterModule,
			StartAt:      startAt,
		})
		if err != nil {
			return err
		}

		recordRun(cfg, storage.Run{
			ID:         uuid.New().String(),
			Kind:       storage.RunAuthorBatch,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  res.Authored,
			Failed:     res.Failed,
		})

		printSuccess("Batch complete. Authored: %d lessons.", res.Authored)
		if res.Failed > 0 {
			printWarning("%d lessons failed; re-run with --start-at to retry", res.Failed)
		}

		if bundleOutput, _ := cmd.Flags().GetString("bundle-output"); bundleOutput != "" {
			if _, err := assembleToFile(plan, cfg.Authoring.GeneratedRoot, a.CurriculumID, bundleOutput); err != nil {
				return err
			}
			printSuccess("Bundled curriculum saved to %s", bundleOutput)
		}
		return nil
	},
}

func init() {
	authorOneCmd.Flags().String("module", "", "module title (e.g. Nouns)")
	authorOneCmd.Flags().String("lesson", "", "lesson title")
	authorOneCmd.Flags().String("slug", "", "lesson slug (defaults to the normalized title)")
	authorOneCmd.Flags().String("brief", "", "extra instructions for this lesson")
	addAuthoringFlags(authorOneCmd)

	authorBatchCmd.Flags().String("curriculum", "", "curriculum JSON with levels/modules/lessons")
	authorBatchCmd.Flags().String("filter-module", "", "only this module title or slug")
	authorBatchCmd.Flags().String("start-at", "", "resume from this lesson slug")
	authorBatchCmd.Flags().String("bundle-output", "", "write a merged curriculum JSON after authoring")
	addAuthoringFlags(authorBatchCmd)

	authorCmd.AddCommand(authorOneCmd)
	authorCmd.AddCommand(authorBatchCmd)
}

// --- bundle ---

// assembleToFile merges the plan and reports how many lesson bodies the
// output carries.
func assembleToFile(plan map[string]any, generatedRoot, currID, output string) (int, error) {
	resolver, err := bundle.NewDirResolver(generatedRoot, currID)
	if err != nil {
		return 0, err
	}
	merged, err := bundle.Assemble(plan, resolver)
	if err != nil {
		return 0, err
	}
	if err := writeJSONFile(output, merged); err != nil {
		return 0, err
	}
	return countLessons(merged), nil
}

func countLessons(merged map[string]any) int {
	n := 0
	levels, _ := merged["levels"].([]any)
	for _, lv := range levels {
		level, _ := lv.(map[string]any)
		modules, _ := level["modules"].([]any)
		for _, md := range modules {
			module, _ := md.(map[string]any)
			lessons, _ := module["lessons"].([]any)
			n += len(lessons)
		}
	}
	return n
}

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Merge per-lesson files into a single curriculum JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		curriculum, _ := cmd.Flags().GetString("curriculum")
		output, _ := cmd.Flags().GetString("output")
		if curriculum == "" || output == "" {
			return fmt.Errorf("--curriculum and --output are required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		_, _, currID := resolveAuthoring(cmd, cfg)

		plan, err := readPlanFile(curriculum)
		if err != nil {
			return err
		}

		started := time.Now()
		lessons, err := assembleToFile(plan, cfg.Authoring.GeneratedRoot, currID, output)
		if err != nil {
			var missing *bundle.MissingLessonsError
			if errors.As(err, &missing) {
				for _, locator := range missing.Locators {
					printError("missing: %s", locator)
				}
				recordRun(cfg, storage.Run{
					ID:         uuid.New().String(),
					Kind:       storage.RunBundle,
					StartedAt:  started,
					FinishedAt: time.Now(),
					Failed:     len(missing.Locators),
				})
			}
			return err
		}

		recordRun(cfg, storage.Run{
			ID:         uuid.New().String(),
			Kind:       storage.RunBundle,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  lessons,
			DetailJSON: fmt.Sprintf(`{"output":%q}`, output),
		})

		printSuccess("Bundled %d lessons from %s into %s", lessons, currID, output)
		return nil
	},
}

func init() {
	bundleCmd.Flags().String("curriculum", "", "curriculum JSON (same file used for authoring)")
	bundleCmd.Flags().String("output", "", "path to write merged curriculum JSON")
	addAuthoringFlags(bundleCmd)
}

// --- rewrite ---

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <target>",
	Short: "Apply a declarative instruction file to lesson JSON",
	Long: `Apply a declarative instruction file to a JSON file or directory tree.

Examples:
  scribe rewrite generated/ --instructions fixes.json --dry-run
  scribe rewrite lesson.json --instructions fixes.json --output-dir out/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instructionsPath, _ := cmd.Flags().GetString("instructions")
		if instructionsPath == "" {
			return fmt.Errorf("--instructions is required")
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		outputDir, _ := cmd.Flags().GetString("output-dir")

		data, err := os.ReadFile(instructionsPath)
		if err != nil {
			return fmt.Errorf("reading instructions: %w", err)
		}
		instructions, err := rewrite.ParseInstructions(data)
		if err != nil {
			return err
		}

		started := time.Now()
		res, err := rewrite.Run(args[0], instructions, rewrite.Options{
			DryRun:    dryRun,
			OutputDir: outputDir,
		})
		if err != nil {
			return err
		}

		for _, path := range res.ChangedPaths {
			printStep("changed %s", path)
		}
		printCount("Scanned", res.Scanned, "files")
		printCount("Changed", res.Changed, "files")
		if res.Failed > 0 {
			printWarning("%d files skipped (unreadable or invalid JSON)", res.Failed)
		}
		printTally(res.Tally)
		if dryRun {
			printWarning("dry run: nothing was written")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		detail, _ := json.Marshal(map[string]any{"tally": res.Tally, "target": args[0]})
		recordRun(cfg, storage.Run{
			ID:         uuid.New().String(),
			Kind:       storage.RunRewrite,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  res.Changed,
			Failed:     res.Failed,
			Skipped:    res.Scanned - res.Changed - res.Failed,
			DetailJSON: string(detail),
		})
		return nil
	},
}

func init() {
	rewriteCmd.Flags().String("instructions", "", "instruction file (JSON)")
	rewriteCmd.Flags().Bool("dry-run", false, "report changes without writing")
	rewriteCmd.Flags().String("output-dir", "", "write modified files here instead of in place")
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate [root]",
	Short: "Flatten legacy text-block data to plain strings",
	Long: `Flatten legacy text-block data to plain strings.

Lessons authored before the current schema may carry text blocks whose data
is an object or a list. This rewrites them in place to the single-string
form the platform expects. Defaults to the generated root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		root := cfg.Authoring.GeneratedRoot
		if len(args) == 1 {
			root = args[0]
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		started := time.Now()
		res, err := migrate.Run(root, dryRun)
		if err != nil {
			return err
		}

		for _, path := range res.ChangedPaths {
			printStep("updated %s", path)
		}
		printCount("Scanned", res.Scanned, "files")
		printCount("Changed", res.Changed, "files")
		if res.Failed > 0 {
			printWarning("%d files skipped (unreadable or invalid JSON)", res.Failed)
		}
		if dryRun {
			printWarning("dry run: nothing was written")
			return nil
		}

		recordRun(cfg, storage.Run{
			ID:         uuid.New().String(),
			Kind:       storage.RunMigrate,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  res.Changed,
			Failed:     res.Failed,
			Skipped:    res.Scanned - res.Changed - res.Failed,
		})

		printSuccess("Done. Updated %d files.", res.Changed)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "report files that would change without writing")
}

// --- reindex ---

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the retrieval index from generated lessons",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = cfg.Authoring.GeneratedRoot
		}
		keep, _ := cmd.Flags().GetBool("keep")

		mem, err := memory.Load(cfg.IndexPath())
		if err != nil {
			return err
		}

		printStep("Embedding lessons under %s...", source)
		started := time.Now()
		res, err := reindex.Rebuild(cmd.Context(), mem, eng, reindex.Options{
			Source:     source,
			Keep:       keep,
			EmbedModel: cfg.Model.EmbedModel,
		})
		if err != nil {
			return err
		}

		recordRun(cfg, storage.Run{
			ID:         uuid.New().String(),
			Kind:       storage.RunReindex,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Succeeded:  res.Indexed,
			Skipped:    res.Skipped,
		})

		printSuccess("Rebuilt index with %d items (%d skipped).", res.Indexed, res.Skipped)
		return nil
	},
}

func init() {
	reindexCmd.Flags().String("source", "", "lesson root (defaults to the generated root)")
	reindexCmd.Flags().Bool("keep", false, "append to the existing index instead of clearing it")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the retrieval index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		mem, err := memory.Load(cfg.IndexPath())
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		results := mem.Search([]string{strings.Join(args, " ")}, limit)
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, rec := range results {
			fmt.Printf("\n%s\n", colorize(colorBold, fmt.Sprintf("Result %d: %s", i+1, rec.Title)))
			fmt.Printf("  Module: %s  Slug: %s\n", rec.Module, rec.Slug)
			fmt.Printf("  %s\n", rec.Path)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask about previously authored lessons",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newAuthor(cmd, cfg)
		if err != nil {
			return err
		}

		answer, err := a.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded batch runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %s  %-12s  ok=%d failed=%d skipped=%d\n",
				colorize(colorCyan, run.ID[:8]),
				run.StartedAt.Local().Format(time.DateTime),
				run.Kind,
				run.Succeeded, run.Failed, run.Skipped,
			)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
}
