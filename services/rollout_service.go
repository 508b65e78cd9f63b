package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
)

// RolloutService drives the full pipeline: detect topology, render,
// provision, apply, wait for convergence, then verify behavior. Each
// stage failure surfaces as its own error class so the caller can map it
// to a distinct exit code.
type RolloutService struct {
	client   *kubernetes.Client
	topology *TopologyService
	render   *RenderService
	apply    *ApplyService
	wait     *WaitService
	verify   *VerifyService
	inspect  *InspectService
	history  *HistoryService
}

// NewRolloutService wires the pipeline stages around a shared client.
func NewRolloutService(client *kubernetes.Client) *RolloutService {
	return &RolloutService{
		client:   client,
		topology: NewTopologyService(client),
		render:   NewRenderService(),
		apply:    NewApplyService(client),
		wait:     NewWaitService(client),
		verify:   NewVerifyService(client),
		inspect:  NewInspectService(client),
		history:  NewHistoryService(),
	}
}

// Rollout runs the pipeline end to end. On success it logs the
// connection summary; the credential is referenced by secret name, never
// printed. The outcome is recorded in history when that is configured.
func (s *RolloutService) Rollout(ctx context.Context, cfg models.DeploymentConfig) error {
	log := logger.WithComponent("rollout")
	record := NewRecord("rollout", cfg)

	err := s.run(ctx, cfg, &record)
	record.FinishedAt = time.Now()
	if err != nil {
		record.Detail = err.Error()
		if record.Outcome == "" {
			record.Outcome = "failed"
		}
	} else {
		record.Outcome = "succeeded"
	}
	s.history.Record(record)

	if err == nil {
		log.Info().
			Str("namespace", cfg.Namespace).
			Str("workload", cfg.Name).
			Msg("rollout complete")
	}
	return err
}

func (s *RolloutService) run(ctx context.Context, cfg models.DeploymentConfig, record *models.RolloutRecord) error {
	log := logger.WithComponent("rollout")

	topology := s.topology.Detect(ctx, cfg.ClusterType)
	log.Info().
		Int("nodes", topology.NodeCount).
		Strs("zones", topology.Zones).
		Bool("spread", topology.SpreadEnabled).
		Msg("topology detected")

	manifests, err := s.render.Render(cfg, topology)
	if err != nil {
		return err
	}
	record.ManifestHash = manifests.Hash

	if err := s.apply.ProvisionPrerequisites(ctx, cfg); err != nil {
		return err
	}
	if err := s.apply.Apply(ctx, cfg, topology); err != nil {
		return err
	}

	outcome := s.wait.WaitForConvergence(ctx, cfg)
	if outcome.Phase != models.RolloutReady {
		s.logDiagnostics(outcome.Diagnostics)
		record.Outcome = strings.ToLower(string(outcome.Phase))
		if outcome.Phase == models.RolloutTimedOut {
			return &models.TimeoutError{
				What:    fmt.Sprintf("statefulset %s/%s convergence (%s)", cfg.Namespace, cfg.Name, outcome.Reason),
				Elapsed: outcome.Elapsed,
			}
		}
		return fmt.Errorf("rollout failed: %s", outcome.Reason)
	}

	report := s.verify.Verify(ctx, cfg)
	record.ChecksPassed = len(report.Checks) - report.FailedCount()
	record.ChecksFailed = report.FailedCount()
	if !report.Passed() {
		record.Outcome = "verification-failed"
		return &models.VerificationError{
			Failed: report.FailedCount(),
			Total:  len(report.Checks),
		}
	}

	s.logConnectionSummary(cfg)
	return nil
}

func (s *RolloutService) logDiagnostics(entries []models.DiagnosticEntry) {
	log := logger.WithComponent("diagnostics")
	for _, entry := range entries {
		event := log.Info().Str("source", entry.Source)
		if entry.Err != "" {
			event.Str("error", entry.Err)
		}
		event.Msg(entry.Detail)
	}
}

// logConnectionSummary emits where clients connect and which secret
// holds the credential. The password value itself never appears in
// output.
func (s *RolloutService) logConnectionSummary(cfg models.DeploymentConfig) {
	info := s.inspect.ConnectionInfo(cfg)
	lg := logger.WithComponent("rollout")
	lg.Info().
		Str("clientHost", info.ClientHost).
		Str("primaryHost", info.PrimaryHost).
		Strs("replicaHosts", info.ReplicaHosts).
		Int("port", info.Port).
		Str("credentialSecret", info.SecretName).
		Str("credentialKey", info.SecretKey).
		Msg("cache ready, credential available in the referenced secret")
}
