package services

import (
	"context"

	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ApplyService pushes rendered resources to the cluster. All creates are
// idempotent: re-applying an existing resource updates it rather than
// failing, so a re-run after a partial failure is always safe.
type ApplyService struct {
	client *kubernetes.Client
}

// NewApplyService creates a new apply service instance.
func NewApplyService(client *kubernetes.Client) *ApplyService {
	return &ApplyService{client: client}
}

// ProvisionPrerequisites ensures the out-of-band resources exist before
// the workload is applied: the namespace, the credential Secret and, for
// persistent deployments on clusters without a suitable default, the
// storage class. Existing resources are left alone.
func (s *ApplyService) ProvisionPrerequisites(ctx context.Context, cfg models.DeploymentConfig) error {
	log := logger.WithComponent("apply")

	if err := s.client.EnsureNamespace(ctx, cfg.Namespace); err != nil {
		return &models.ApplyError{Resource: "namespace/" + cfg.Namespace, Err: err}
	}

	secret := utils.BuildSecret(cfg)
	_, err := s.client.Clientset.CoreV1().Secrets(cfg.Namespace).Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		log.Debug().Str("secret", secret.Name).Msg("credential secret already present")
		err = nil
	}
	if err != nil {
		return &models.ApplyError{Resource: "secret/" + secret.Name, Err: err}
	}

	if cfg.PersistenceEnabled && cfg.ClusterType.RequiresManagedStorageClass() {
		storageClass := utils.BuildStorageClass(cfg)
		_, err := s.client.Clientset.StorageV1().StorageClasses().Create(ctx, storageClass, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			log.Debug().Str("storageClass", storageClass.Name).Msg("storage class already present")
			err = nil
		}
		if err != nil {
			return &models.ApplyError{Resource: "storageclass/" + storageClass.Name, Err: err}
		}
	}

	log.Info().Str("namespace", cfg.Namespace).Msg("prerequisites provisioned")
	return nil
}

// applyService creates the service, or updates it in place when it
// already exists. The allocated ClusterIP is immutable and is carried
// over from the live object.
func (s *ApplyService) applyService(ctx context.Context, namespace string, desired *corev1.Service) error {
	services := s.client.Clientset.CoreV1().Services(namespace)
	if _, err := services.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return &models.ApplyError{Resource: "service/" + desired.Name, Err: err}
		}
		existing, getErr := services.Get(ctx, desired.Name, metav1.GetOptions{})
		if getErr != nil {
			return &models.ApplyError{Resource: "service/" + desired.Name, Err: getErr}
		}
		desired.ResourceVersion = existing.ResourceVersion
		desired.Spec.ClusterIP = existing.Spec.ClusterIP
		desired.Spec.ClusterIPs = existing.Spec.ClusterIPs
		if _, err := services.Update(ctx, desired, metav1.UpdateOptions{}); err != nil {
			return &models.ApplyError{Resource: "service/" + desired.Name, Err: err}
		}
	}
	return nil
}

// Apply commits the rendered resource set in manifest order. The first
// error aborts immediately; cleanup of partial state is the operator's
// explicit delete action, never automatic.
func (s *ApplyService) Apply(ctx context.Context, cfg models.DeploymentConfig, topology models.TopologyProfile) error {
	log := logger.WithComponent("apply")
	core := s.client.Clientset.CoreV1()

	serviceAccount := utils.BuildServiceAccount(cfg)
	if _, err := core.ServiceAccounts(cfg.Namespace).Create(ctx, serviceAccount, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			existing, getErr := core.ServiceAccounts(cfg.Namespace).Get(ctx, serviceAccount.Name, metav1.GetOptions{})
			if getErr != nil {
				return &models.ApplyError{Resource: "serviceaccount/" + serviceAccount.Name, Err: getErr}
			}
			existing.Labels = serviceAccount.Labels
			if _, err := core.ServiceAccounts(cfg.Namespace).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
				return &models.ApplyError{Resource: "serviceaccount/" + serviceAccount.Name, Err: err}
			}
		} else {
			return &models.ApplyError{Resource: "serviceaccount/" + serviceAccount.Name, Err: err}
		}
	}

	if err := s.applyService(ctx, cfg.Namespace, utils.BuildHeadlessService(cfg)); err != nil {
		return err
	}
	if err := s.applyService(ctx, cfg.Namespace, utils.BuildClientService(cfg)); err != nil {
		return err
	}

	networkPolicy := utils.BuildNetworkPolicy(cfg)
	if _, err := s.client.Clientset.NetworkingV1().NetworkPolicies(cfg.Namespace).Create(ctx, networkPolicy, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			if _, err := s.client.Clientset.NetworkingV1().NetworkPolicies(cfg.Namespace).Update(ctx, networkPolicy, metav1.UpdateOptions{}); err != nil {
				return &models.ApplyError{Resource: "networkpolicy/" + networkPolicy.Name, Err: err}
			}
		} else {
			return &models.ApplyError{Resource: "networkpolicy/" + networkPolicy.Name, Err: err}
		}
	}

	budget := utils.BuildDisruptionBudget(cfg)
	if _, err := s.client.Clientset.PolicyV1().PodDisruptionBudgets(cfg.Namespace).Create(ctx, budget, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			existing, getErr := s.client.Clientset.PolicyV1().PodDisruptionBudgets(cfg.Namespace).Get(ctx, budget.Name, metav1.GetOptions{})
			if getErr != nil {
				return &models.ApplyError{Resource: "poddisruptionbudget/" + budget.Name, Err: getErr}
			}
			existing.Spec = budget.Spec
			if _, err := s.client.Clientset.PolicyV1().PodDisruptionBudgets(cfg.Namespace).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
				return &models.ApplyError{Resource: "poddisruptionbudget/" + budget.Name, Err: err}
			}
		} else {
			return &models.ApplyError{Resource: "poddisruptionbudget/" + budget.Name, Err: err}
		}
	}

	statefulSet := utils.BuildStatefulSet(cfg, topology)
	if _, err := s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Create(ctx, statefulSet, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			// Only mutable StatefulSet fields can change on update; the
			// volume claim template is immutable after creation.
			existing, getErr := s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Get(ctx, statefulSet.Name, metav1.GetOptions{})
			if getErr != nil {
				return &models.ApplyError{Resource: "statefulset/" + statefulSet.Name, Err: getErr}
			}
			existing.Spec.Replicas = statefulSet.Spec.Replicas
			existing.Spec.Template = statefulSet.Spec.Template
			existing.Spec.UpdateStrategy = statefulSet.Spec.UpdateStrategy
			if _, err := s.client.Clientset.AppsV1().StatefulSets(cfg.Namespace).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
				return &models.ApplyError{Resource: "statefulset/" + statefulSet.Name, Err: err}
			}
		} else {
			return &models.ApplyError{Resource: "statefulset/" + statefulSet.Name, Err: err}
		}
	}

	log.Info().
		Str("namespace", cfg.Namespace).
		Str("workload", cfg.Name).
		Int("replicas", cfg.Replicas).
		Msg("manifest set applied")
	return nil
}
