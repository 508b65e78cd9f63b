package services

import (
	"context"
	"testing"

	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"
)

func TestProvisionPrerequisitesCreatesNamespaceAndSecret(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient()
	service := NewApplyService(client)

	require.NoError(t, service.ProvisionPrerequisites(context.Background(), cfg))

	_, err := clientset.CoreV1().Namespaces().Get(context.Background(), cfg.Namespace, metav1.GetOptions{})
	assert.NoError(t, err)

	secret, err := clientset.CoreV1().Secrets(cfg.Namespace).Get(context.Background(), cfg.SecretName(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, cfg.Password, secret.StringData[utils.SecretPasswordKey])
}

func TestProvisionPrerequisitesKeepsExistingSecret(t *testing.T) {
	cfg := testDeployConfig()
	existing := utils.BuildSecret(cfg)
	existing.StringData[utils.SecretPasswordKey] = "original"
	client, clientset := fakeClient(existing)
	service := NewApplyService(client)

	require.NoError(t, service.ProvisionPrerequisites(context.Background(), cfg))

	secret, err := clientset.CoreV1().Secrets(cfg.Namespace).Get(context.Background(), cfg.SecretName(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "original", secret.StringData[utils.SecretPasswordKey])
}

func TestProvisionPrerequisitesCreatesStorageClassOnlyWhenNeeded(t *testing.T) {
	tests := []struct {
		name        string
		clusterType models.ClusterType
		persistence bool
		want        bool
	}{
		{"eks persistent", models.ClusterEKS, true, true},
		{"eks ephemeral", models.ClusterEKS, false, false},
		{"kind persistent", models.ClusterKind, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDeployConfig()
			cfg.ClusterType = tt.clusterType
			cfg.PersistenceEnabled = tt.persistence
			cfg.StorageClassName = "cachectl-gp3"
			client, clientset := fakeClient()

			require.NoError(t, NewApplyService(client).ProvisionPrerequisites(context.Background(), cfg))

			_, err := clientset.StorageV1().StorageClasses().Get(context.Background(), cfg.StorageClassName, metav1.GetOptions{})
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestApplyCreatesFullResourceSet(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient()
	service := NewApplyService(client)

	require.NoError(t, service.Apply(context.Background(), cfg, models.TopologyProfile{}))

	_, err := clientset.CoreV1().ServiceAccounts(cfg.Namespace).Get(context.Background(), cfg.ServiceAccountName(), metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = clientset.CoreV1().Services(cfg.Namespace).Get(context.Background(), cfg.HeadlessServiceName(), metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = clientset.CoreV1().Services(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = clientset.NetworkingV1().NetworkPolicies(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = clientset.PolicyV1().PodDisruptionBudgets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.NoError(t, err)

	statefulSet, err := clientset.AppsV1().StatefulSets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), *statefulSet.Spec.Replicas)
}

func TestApplyIsIdempotent(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient()
	service := NewApplyService(client)

	require.NoError(t, service.Apply(context.Background(), cfg, models.TopologyProfile{}))

	// Re-apply with a changed replica count updates in place.
	cfg.Replicas = 5
	require.NoError(t, service.Apply(context.Background(), cfg, models.TopologyProfile{}))

	statefulSet, err := clientset.AppsV1().StatefulSets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(5), *statefulSet.Spec.Replicas)
}

func TestApplyUpdatesServicesOnPortChange(t *testing.T) {
	cfg := testDeployConfig()

	// Existing services from an earlier rollout, client service with its
	// allocated ClusterIP.
	existingClient := utils.BuildClientService(cfg)
	existingClient.Spec.ClusterIP = "10.96.0.10"
	existingClient.Spec.ClusterIPs = []string{"10.96.0.10"}
	client, clientset := fakeClient(
		utils.BuildHeadlessService(cfg),
		existingClient,
	)

	cfg.Port = 6380
	require.NoError(t, NewApplyService(client).Apply(context.Background(), cfg, models.TopologyProfile{}))

	headless, err := clientset.CoreV1().Services(cfg.Namespace).Get(context.Background(), cfg.HeadlessServiceName(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(6380), headless.Spec.Ports[0].Port)
	assert.Equal(t, "None", headless.Spec.ClusterIP)

	clientService, err := clientset.CoreV1().Services(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(6380), clientService.Spec.Ports[0].Port)
	assert.Equal(t, 6380, clientService.Spec.Ports[0].TargetPort.IntValue())
	// The allocated ClusterIP survives the update.
	assert.Equal(t, "10.96.0.10", clientService.Spec.ClusterIP)
}

func TestApplyUpdatesServiceAccountLabels(t *testing.T) {
	cfg := testDeployConfig()
	existing := utils.BuildServiceAccount(cfg)
	existing.Labels = nil
	client, clientset := fakeClient(existing)

	require.NoError(t, NewApplyService(client).Apply(context.Background(), cfg, models.TopologyProfile{}))

	serviceAccount, err := clientset.CoreV1().ServiceAccounts(cfg.Namespace).Get(context.Background(), cfg.ServiceAccountName(), metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cachectl", serviceAccount.Labels["managed-by"])
}

func TestApplyWrapsClusterRejection(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient()
	clientset.PrependReactor("create", "statefulsets", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, assert.AnError
	})

	err := NewApplyService(client).Apply(context.Background(), cfg, models.TopologyProfile{})

	var applyErr *models.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, "statefulset/cache", applyErr.Resource)
}
