package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WaitService polls the workload until convergence or timeout. Readiness
// polling only starts after the apply step has been acknowledged by the
// cluster, and no wait here can block past its configured bound.
type WaitService struct {
	client      *kubernetes.Client
	diagnostics *DiagnosticsService
}

// NewWaitService creates a new wait service instance.
func NewWaitService(client *kubernetes.Client) *WaitService {
	return &WaitService{
		client:      client,
		diagnostics: NewDiagnosticsService(client),
	}
}

// WaitForConvergence polls StatefulSet status at the configured interval
// until every replica is updated and ready, or the timeout elapses. On
// timeout it collects a diagnostics snapshot before reporting the
// outcome; diagnostics never wait further on the cluster.
func (s *WaitService) WaitForConvergence(ctx context.Context, cfg models.DeploymentConfig) models.RolloutOutcome {
	log := logger.WithComponent("wait")
	log.Info().
		Str("workload", cfg.Name).
		Dur("timeout", cfg.RolloutTimeout).
		Dur("interval", cfg.PollInterval).
		Msg("waiting for convergence")

	var lastState string
	elapsed, err := utils.PollUntil(ctx, cfg.PollInterval, cfg.RolloutTimeout, func(ctx context.Context) (bool, error) {
		statefulSet, err := s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Get(ctx, cfg.Name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}

		status := statefulSet.Status
		lastState = fmt.Sprintf("generation=%d observed=%d replicas=%d ready=%d updated=%d",
			statefulSet.Generation, status.ObservedGeneration,
			status.Replicas, status.ReadyReplicas, status.UpdatedReplicas)

		converged := status.ObservedGeneration >= statefulSet.Generation &&
			status.Replicas == int32(cfg.Replicas) &&
			status.ReadyReplicas == int32(cfg.Replicas) &&
			status.UpdatedReplicas == int32(cfg.Replicas)
		return converged, nil
	})

	if err == nil {
		log.Info().Dur("elapsed", elapsed).Msg("workload converged")
		return models.RolloutOutcome{Phase: models.RolloutReady, Elapsed: elapsed}
	}

	outcome := models.RolloutOutcome{
		Reason:  fmt.Sprintf("%v (last status: %s)", err, lastState),
		Elapsed: elapsed,
	}
	if errors.Is(err, utils.ErrPollTimeout) {
		outcome.Phase = models.RolloutTimedOut
	} else {
		outcome.Phase = models.RolloutFailed
	}

	log.Error().Str("reason", outcome.Reason).Msg("convergence not reached, collecting diagnostics")
	outcome.Diagnostics = s.diagnostics.Snapshot(ctx, cfg)
	return outcome
}
