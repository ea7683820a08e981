package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/metcalfcloud/pictallion/internal/app"
	"github.com/metcalfcloud/pictallion/internal/batch"
	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/encryption"
	"github.com/metcalfcloud/pictallion/internal/grouping"
	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Ingest", "Dupes").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cmd.Context(), cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "pictallion",
	Short: "Personal photo library deduplication and promotion pipeline",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Catalog:    %s\n", cfg.Catalog.Type)
		fmt.Printf("Blob Store: %s\n", cfg.BlobStore.Type)
		fmt.Printf("Metadata:   %s\n", cfg.Metadata.Type)
		fmt.Printf("Annotator:  %s\n", cfg.Annotator.Provider)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if err := enc.Setup(); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Key pair written under %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Println("Set encryption type to \"age\" in the config to encrypt backups.")
		return nil
	},
}

// ingest command

var ingestCmd = &cobra.Command{
	Use:   "ingest PATH...",
	Short: "Bring photo files into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Ingest(cmd.Context(), args)
		if err != nil {
			return err
		}

		ingested, skipped, undecodable := 0, 0, 0
		for i, r := range results {
			switch {
			case r.SkippedDuplicate:
				skipped++
				fmt.Printf("skip  %s (duplicate of asset %s)\n", args[i], shortID(r.Asset.ID))
			case r.Undecodable:
				undecodable++
				fmt.Printf("warn  %s -> asset %s (not decodable, stored without perceptual hash)\n", args[i], shortID(r.Asset.ID))
			default:
				ingested++
				fmt.Printf("ok    %s -> asset %s\n", args[i], shortID(r.Asset.ID))
			}
		}
		fmt.Printf("\nIngested %d, skipped %d duplicate(s), %d undecodable\n", ingested, skipped, undecodable)
		return nil
	},
}

// dupes command

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Scan for duplicate groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		minSimilarity, _ := cmd.Flags().GetInt("min-similarity")

		a, err := newApp(cmd, "Dupes")
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.ScanDuplicates(cmd.Context(), minSimilarity)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No duplicate groups found.")
			return nil
		}

		for i, g := range groups {
			fmt.Printf("\nGroup %d: %s, average similarity %d%%\n", i+1, g.GroupType, g.AverageSimilarity)
			fmt.Println(duplicateTable(g))
		}
		return nil
	},
}

func duplicateTable(g grouping.DuplicateGroup) string {
	rows := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		marker := ""
		if m.ID == g.SuggestedKeep {
			marker = "keep"
		}
		rows = append(rows, []string{
			shortID(m.ID),
			shortID(m.AssetID),
			string(m.Tier),
			strconv.FormatInt(m.FileSize, 10),
			strconv.Itoa(m.Rating),
			marker,
		})
	}
	return renderTable(
		[]string{"INSTANCE", "ASSET", "TIER", "BYTES", "RATING", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

// bursts command

var burstsCmd = &cobra.Command{
	Use:   "bursts",
	Short: "Scan for burst groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetInt("window")
		minSimilarity, _ := cmd.Flags().GetInt("min-similarity")

		a, err := newApp(cmd, "Bursts")
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.ScanBursts(cmd.Context(), window, minSimilarity)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Println("No burst groups found.")
			return nil
		}

		for i, g := range groups {
			fmt.Printf("\nBurst %d: %s, span %s, average similarity %d%%\n",
				i+1, g.GroupReason, g.TimeSpan.Truncate(time.Millisecond), g.AverageSimilarity)
			fmt.Println(burstTable(g))
		}
		return nil
	},
}

func burstTable(g grouping.BurstGroup) string {
	rows := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		marker := ""
		if m.ID == g.SuggestedBest {
			marker = "best"
		}
		capture := ""
		if m.CaptureTime != nil {
			capture = m.CaptureTime.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			shortID(m.ID),
			shortID(m.AssetID),
			capture,
			strconv.Itoa(m.Rating),
			marker,
		})
	}
	return renderTable(
		[]string{"INSTANCE", "ASSET", "CAPTURED", "RATING", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// rehash command

var rehashCmd = &cobra.Command{
	Use:   "rehash",
	Short: "Backfill perceptual hashes for instances missing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Rehash")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Rehash(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Backfilled %d perceptual hash(es), %d still undecodable\n",
			result.Updated, result.Skipped)
		return nil
	},
}

// resolve command

var resolveCmd = &cobra.Command{
	Use:   "resolve --members ID,ID[,...]",
	Short: "Apply a decision to a duplicate or burst group",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		members, _ := cmd.Flags().GetStringSlice("members")
		suggested, _ := cmd.Flags().GetString("suggested")
		keep, _ := cmd.Flags().GetStringSlice("keep")

		a, err := newApp(cmd, "Resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		d := library.GroupDecision{
			Mode:      library.DecisionMode(mode),
			Members:   members,
			Suggested: suggested,
			Keep:      keep,
		}
		if err := a.Resolve(cmd.Context(), d); err != nil {
			return err
		}

		fmt.Printf("Decision %s applied to %d member(s)\n", mode, len(members))
		return nil
	},
}

// review and rate commands

var reviewCmd = &cobra.Command{
	Use:   "review INSTANCE",
	Short: "Acknowledge an instance as human-reviewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")

		a, err := newApp(cmd, "Review")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Review(cmd.Context(), args[0], !undo); err != nil {
			return err
		}
		if undo {
			fmt.Printf("Review acknowledgment cleared on %s\n", args[0])
		} else {
			fmt.Printf("Marked %s as reviewed\n", args[0])
		}
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate INSTANCE RATING",
	Short: "Rate an instance from 0 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid rating: %s", args[1])
		}

		a, err := newApp(cmd, "Rate")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rate(cmd.Context(), args[0], rating); err != nil {
			return err
		}
		fmt.Printf("Rated %s: %d\n", args[0], rating)
		return nil
	},
}

// annotate and finalize commands

var annotateCmd = &cobra.Command{
	Use:   "annotate [ASSET...]",
	Short: "Promote assets from raw to reviewed",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return fmt.Errorf("pass asset IDs or --all")
		}

		a, err := newApp(cmd, "Annotate")
		if err != nil {
			return err
		}
		defer a.Close()

		ids := args
		if all {
			ids, err = a.RawAssetIDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No raw assets to annotate.")
				return nil
			}
		}

		result, err := a.Batch(cmd.Context(), batch.OperationAnnotate, ids, actor(), false)
		if err != nil {
			return err
		}
		printBatchResult("Annotated", result)
		return nil
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize [ASSET...]",
	Short: "Promote assets from reviewed to finalized",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		force, _ := cmd.Flags().GetBool("force")
		if len(args) == 0 && !all {
			return fmt.Errorf("pass asset IDs or --all")
		}

		a, err := newApp(cmd, "Finalize")
		if err != nil {
			return err
		}
		defer a.Close()

		ids := args
		if all {
			ids, err = a.ReviewedAssetIDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No reviewed assets to finalize.")
				return nil
			}
		}

		result, err := a.Batch(cmd.Context(), batch.OperationFinalize, ids, actor(), force)
		if err != nil {
			return err
		}
		printBatchResult("Finalized", result)
		return nil
	},
}

func printBatchResult(verb string, result *batch.Result) {
	fmt.Printf("%s %d asset(s)", verb, len(result.Succeeded))
	if len(result.Failed) > 0 {
		fmt.Printf(", %d failed", len(result.Failed))
	}
	if result.Skipped > 0 {
		fmt.Printf(", %d skipped", result.Skipped)
	}
	fmt.Println()
	for _, f := range result.Failed {
		fmt.Printf("  %s: %s\n", shortID(f.AssetID), f.Reason)
	}
}

// history and status commands

var historyCmd = &cobra.Command{
	Use:   "history ASSET",
	Short: "View an asset's transition log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "History")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No transitions recorded.")
			return nil
		}

		for _, r := range records {
			line := fmt.Sprintf("#%d  %s  %s -> %s  %-7s  %s",
				r.Seq,
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.FromTier, r.ToTier,
				r.Outcome,
				r.Actor,
			)
			if r.Outcome == model.OutcomeFailure {
				line += "  " + r.Reason
			}
			fmt.Println(line)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status ASSET",
	Short: "View an asset's current standing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Asset:    %s (%s)\n", status.Asset.ID, status.Asset.OriginalFilename)
		if status.Instance == nil {
			fmt.Println("No active instance.")
			return nil
		}
		inst := status.Instance
		fmt.Printf("Instance: %s\n", inst.ID)
		fmt.Printf("Tier:     %s\n", inst.Tier)
		fmt.Printf("Reviewed: %v  Rating: %d\n", inst.IsReviewed, inst.Rating)
		if inst.Discarded {
			fmt.Println("Discarded by group decision.")
		}
		if inst.KeptDuplicate {
			fmt.Println("Kept as a deliberate duplicate.")
		}
		fmt.Printf("Transitions: %d\n", len(status.Records))
		return nil
	},
}

// backup command

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the catalog into the blob store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Backup(cmd.Context())
		if err != nil {
			return err
		}
		if result.Skipped {
			fmt.Printf("Snapshot already at version %d, nothing to do\n", result.Version)
			return nil
		}
		suffix := ""
		if result.Encrypted {
			suffix = " (encrypted)"
		}
		fmt.Printf("Backed up catalog at version %d%s\n", result.Version, suffix)
		return nil
	},
}

// actor identifies who triggered a promotion in the transition log.
func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i >= 8 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(ingestCmd)

	dupesCmd.Flags().Int("min-similarity", 0, "Minimum similarity percentage for a duplicate edge")
	rootCmd.AddCommand(dupesCmd)

	burstsCmd.Flags().Int("window", 0, "Maximum seconds between captures in a burst")
	burstsCmd.Flags().Int("min-similarity", 0, "Minimum similarity percentage for a burst edge")
	rootCmd.AddCommand(burstsCmd)

	rootCmd.AddCommand(rehashCmd)

	resolveCmd.Flags().String("mode", string(library.KeepSuggested), "Decision mode: keep_suggested, keep_all, keep_specific, keep_none")
	resolveCmd.Flags().StringSlice("members", nil, "Instance IDs in the group")
	resolveCmd.Flags().String("suggested", "", "Suggested instance for keep_suggested")
	resolveCmd.Flags().StringSlice("keep", nil, "Instance IDs to keep for keep_specific")
	resolveCmd.MarkFlagRequired("members")
	rootCmd.AddCommand(resolveCmd)

	reviewCmd.Flags().Bool("undo", false, "Clear the review acknowledgment instead")
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(rateCmd)

	annotateCmd.Flags().Bool("all", false, "Annotate every raw asset")
	rootCmd.AddCommand(annotateCmd)

	finalizeCmd.Flags().Bool("all", false, "Finalize every reviewed asset")
	finalizeCmd.Flags().Bool("force", false, "Finalize without the review acknowledgment")
	rootCmd.AddCommand(finalizeCmd)

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
}
