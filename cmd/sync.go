package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"stocklink/core/config"
	"stocklink/core/database"
	"stocklink/core/logger"
	"stocklink/feature/audit"
	syncfeature "stocklink/feature/sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for sync commands
	syncTenant         string
	syncSource         string
	syncTarget         string
	allowLargeRemovals bool
	applyAfterPreview  bool
	yesConfirm         bool
)

// syncCmd is the parent command for all sync operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run inventory synchronization between stores",
	Long: `Preview and apply inventory changes between two connected stores.
A preview builds a reviewable change plan without touching any marketplace.`,
}

// syncPreviewCmd builds a change plan and optionally applies it.
var syncPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Build a sync change plan (report + optionally apply)",
	Long: `Fetch both stores' inventories and diff them into a change plan.

Examples:
  # Report only
  sync preview --tenant <id> --source <id> --target <id>

  # Preview and apply with interactive confirmation
  sync preview --tenant <id> --source <id> --target <id> --apply

  # Allow removals above the safety threshold, auto-confirm
  sync preview --tenant <id> --source <id> --target <id> --apply --allow-large-removals --yes`,
	RunE: runSyncPreview,
}

// syncApproveCmd applies an existing previewed run.
var syncApproveCmd = &cobra.Command{
	Use:   "approve <run-id>",
	Short: "Apply a previewed sync run",
	Long: `Apply the plan of an existing PREVIEW_READY run. A FAILED run can be
re-approved to resume from its first pending item.`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncApprove,
}

func init() {
	syncCmd.AddCommand(syncPreviewCmd)
	syncCmd.AddCommand(syncApproveCmd)

	syncCmd.PersistentFlags().StringVar(&syncTenant, "tenant", "", "Tenant id (required)")
	_ = syncCmd.MarkPersistentFlagRequired("tenant")

	syncPreviewCmd.Flags().StringVar(&syncSource, "source", "", "Source store id (required)")
	syncPreviewCmd.Flags().StringVar(&syncTarget, "target", "", "Target store id (required)")
	syncPreviewCmd.Flags().BoolVar(&allowLargeRemovals, "allow-large-removals", false, "Permit removals above the 10% safety threshold")
	syncPreviewCmd.Flags().BoolVar(&applyAfterPreview, "apply", false, "Apply the plan after previewing it")
	_ = syncPreviewCmd.MarkFlagRequired("source")
	_ = syncPreviewCmd.MarkFlagRequired("target")

	syncCmd.PersistentFlags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm apply (non-interactive)")

	RootCmd.AddCommand(syncCmd)
}

// syncService wires a service the same way the server does, minus HTTP.
func syncService() (*syncfeature.Service, *zap.Logger, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return syncfeature.NewService(db, l, audit.NewRecorder(db), nil), l, nil
}

func runSyncPreview(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, l, err := syncService()
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(syncTenant)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	sourceID, err := uuid.Parse(syncSource)
	if err != nil {
		return fmt.Errorf("invalid source store id: %w", err)
	}
	targetID, err := uuid.Parse(syncTarget)
	if err != nil {
		return fmt.Errorf("invalid target store id: %w", err)
	}

	l.Info("Building sync preview")
	run, err := svc.CreatePreview(ctx, audit.SystemContext(tenantID), syncfeature.CreatePreviewRequest{
		SourceStoreID:      sourceID,
		TargetStoreID:      targetID,
		AllowLargeRemovals: allowLargeRemovals,
	})
	if err != nil {
		return fmt.Errorf("failed to build preview: %w", err)
	}

	printRunReport(ctx, l, svc, tenantID, run)

	if !applyAfterPreview {
		l.Info("No apply requested. Use --apply to execute the plan, or approve the run later.",
			zap.String("run_id", run.ID.String()))
		return nil
	}

	return approveRun(ctx, svc, l, tenantID, run.ID)
}

func runSyncApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, l, err := syncService()
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(syncTenant)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	run, err := svc.GetRun(ctx, tenantID, runID)
	if err != nil {
		return err
	}
	printRunReport(ctx, l, svc, tenantID, run)

	return approveRun(ctx, svc, l, tenantID, runID)
}

func approveRun(ctx context.Context, svc *syncfeature.Service, l *zap.Logger, tenantID, runID uuid.UUID) error {
	if !confirmApply() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	l.Info("Applying plan...", zap.String("run_id", runID.String()))
	run, err := svc.ApproveRun(ctx, audit.SystemContext(tenantID), runID)
	if err != nil {
		return fmt.Errorf("failed to apply run: %w", err)
	}

	l.Info("Run completed", zap.String("run_id", run.ID.String()), zap.String("status", string(run.Status)))
	return nil
}

// printRunReport logs the run's plan summary and a sample of its items.
func printRunReport(ctx context.Context, l *zap.Logger, svc *syncfeature.Service, tenantID uuid.UUID, run *syncfeature.Run) {
	s := syncfeature.SummaryFromMap(run.PlanSummary)

	l.Info("Sync plan report",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("add", s.Add),
		zap.Int("update", s.Update),
		zap.Int("remove", s.Remove),
		zap.Int("skip", s.Skip),
	)

	items, err := svc.ListPlanItems(ctx, tenantID, run.ID)
	if err != nil {
		l.Warn("Failed to load plan items", zap.Error(err))
		return
	}

	// Show sample of pending actions (max 5 for logger)
	maxShow := 5
	shown := 0
	for _, item := range items {
		if item.Status != syncfeature.ItemStatusPending {
			continue
		}
		if shown >= maxShow {
			break
		}
		l.Info("Sample action",
			zap.String("action", string(item.Action)),
			zap.Any("changes", item.Changes),
		)
		shown++
	}
}

// confirmApply prompts the user for confirmation or uses --yes flag.
func confirmApply() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to apply the plan against the target store: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
