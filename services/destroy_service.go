package services

import (
	"context"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DestroyService reverses a rollout. Workload-level resources are
// removed best-effort in reverse apply order; namespace removal is gated
// on explicit confirmation. Storage classes, PVCs and their backing
// volumes are never purged here: durable data lifecycle is managed
// separately on purpose.
type DestroyService struct {
	client *kubernetes.Client
}

// NewDestroyService creates a new destroy service instance.
func NewDestroyService(client *kubernetes.Client) *DestroyService {
	return &DestroyService{client: client}
}

// Destroy removes the applied resource set. Without the confirmation
// flag the namespace (and everything that only cascades with it) is left
// in place and the call fails with DestructionAborted rather than
// prompting or guessing.
func (s *DestroyService) Destroy(ctx context.Context, cfg models.DeploymentConfig, confirmed bool) error {
	log := logger.WithComponent("destroy")

	if !confirmed {
		return &models.DestructionAbortedError{
			Reason: "namespace deletion requires an explicit confirmation flag in a non-interactive context",
		}
	}

	exists, err := s.client.NamespaceExists(ctx, cfg.Namespace)
	if err != nil {
		return err
	}
	if !exists {
		log.Info().Str("namespace", cfg.Namespace).Msg("namespace not present, nothing to destroy")
		return nil
	}

	// Reverse apply order. Each delete tolerates absence so a re-run
	// after a partial teardown converges to the same end state.
	deletions := []struct {
		kind string
		do   func() error
	}{
		{"statefulset/" + cfg.Name, func() error {
			return s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Delete(ctx, cfg.Name, metav1.DeleteOptions{})
		}},
		{"poddisruptionbudget/" + cfg.Name, func() error {
			return s.client.Clientset.PolicyV1().PodDisruptionBudgets(cfg.Namespace).Delete(ctx, cfg.Name, metav1.DeleteOptions{})
		}},
		{"networkpolicy/" + cfg.Name, func() error {
			return s.client.Clientset.NetworkingV1().NetworkPolicies(cfg.Namespace).Delete(ctx, cfg.Name, metav1.DeleteOptions{})
		}},
		{"service/" + cfg.Name, func() error {
			return s.client.Clientset.CoreV1().Services(cfg.Namespace).Delete(ctx, cfg.Name, metav1.DeleteOptions{})
		}},
		{"service/" + cfg.HeadlessServiceName(), func() error {
			return s.client.Clientset.CoreV1().Services(cfg.Namespace).Delete(ctx, cfg.HeadlessServiceName(), metav1.DeleteOptions{})
		}},
		{"secret/" + cfg.SecretName(), func() error {
			return s.client.Clientset.CoreV1().Secrets(cfg.Namespace).Delete(ctx, cfg.SecretName(), metav1.DeleteOptions{})
		}},
		{"serviceaccount/" + cfg.ServiceAccountName(), func() error {
			return s.client.Clientset.CoreV1().ServiceAccounts(cfg.Namespace).Delete(ctx, cfg.ServiceAccountName(), metav1.DeleteOptions{})
		}},
	}

	for _, deletion := range deletions {
		if err := deletion.do(); err != nil && !apierrors.IsNotFound(err) {
			log.Warn().Err(err).Str("resource", deletion.kind).Msg("delete failed, continuing")
		} else {
			log.Info().Str("resource", deletion.kind).Msg("deleted")
		}
	}

	if err := s.client.DeleteNamespace(ctx, cfg.Namespace); err != nil {
		return err
	}
	log.Info().Str("namespace", cfg.Namespace).Msg("namespace deletion requested")
	log.Info().Msg("storage classes and persistent volumes are left untouched by design")
	return nil
}
