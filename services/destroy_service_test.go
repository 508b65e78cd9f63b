package services

import (
	"context"
	"testing"

	"github.com/cacheops/cachectl/models"
	"github.com/cacheops/cachectl/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

func deployedObjects(cfg models.DeploymentConfig) []runtime.Object {
	return []runtime.Object{
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: cfg.Namespace}},
		utils.BuildServiceAccount(cfg),
		utils.BuildHeadlessService(cfg),
		utils.BuildClientService(cfg),
		utils.BuildNetworkPolicy(cfg),
		utils.BuildDisruptionBudget(cfg),
		utils.BuildStatefulSet(cfg, models.TopologyProfile{}),
		utils.BuildSecret(cfg),
	}
}

func TestDestroyRequiresConfirmation(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient(deployedObjects(cfg)...)

	err := NewDestroyService(client).Destroy(context.Background(), cfg, false)

	var aborted *models.DestructionAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, models.ExitDestructionAborted, models.ExitCodeFor(err))

	// Nothing was touched.
	_, err = clientset.AppsV1().StatefulSets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = clientset.CoreV1().Namespaces().Get(context.Background(), cfg.Namespace, metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestDestroyRemovesResourceSetAndNamespace(t *testing.T) {
	cfg := testDeployConfig()
	client, clientset := fakeClient(deployedObjects(cfg)...)

	require.NoError(t, NewDestroyService(client).Destroy(context.Background(), cfg, true))

	_, err := clientset.AppsV1().StatefulSets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.Error(t, err)
	_, err = clientset.CoreV1().Secrets(cfg.Namespace).Get(context.Background(), cfg.SecretName(), metav1.GetOptions{})
	assert.Error(t, err)
	_, err = clientset.CoreV1().Namespaces().Get(context.Background(), cfg.Namespace, metav1.GetOptions{})
	assert.Error(t, err)
}

func TestDestroyMissingNamespaceIsNoop(t *testing.T) {
	cfg := testDeployConfig()
	client, _ := fakeClient()

	assert.NoError(t, NewDestroyService(client).Destroy(context.Background(), cfg, true))
}

func TestDestroyToleratesPartialState(t *testing.T) {
	cfg := testDeployConfig()
	// Only the namespace and the StatefulSet survive from a previous
	// partial teardown.
	client, clientset := fakeClient(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: cfg.Namespace}},
		utils.BuildStatefulSet(cfg, models.TopologyProfile{}),
	)

	require.NoError(t, NewDestroyService(client).Destroy(context.Background(), cfg, true))

	_, err := clientset.AppsV1().StatefulSets(cfg.Namespace).Get(context.Background(), cfg.Name, metav1.GetOptions{})
	assert.Error(t, err)
}

func TestDestroyNeverTouchesDurableStorage(t *testing.T) {
	cfg := testDeployConfig()
	cfg.ClusterType = models.ClusterEKS
	cfg.PersistenceEnabled = true
	cfg.StorageClassName = "cachectl-gp3"

	objects := append(deployedObjects(cfg),
		utils.BuildStorageClass(cfg),
		&corev1.PersistentVolumeClaim{
			ObjectMeta: metav1.ObjectMeta{
				Name:      utils.DataVolumeName + "-" + cfg.Name + "-0",
				Namespace: cfg.Namespace,
				Labels:    utils.GetResourceLabels(cfg),
			},
		},
	)
	client, clientset := fakeClient(objects...)

	require.NoError(t, NewDestroyService(client).Destroy(context.Background(), cfg, true))

	storageClass, err := clientset.StorageV1().StorageClasses().Get(context.Background(), cfg.StorageClassName, metav1.GetOptions{})
	require.NoError(t, err)
	assert.IsType(t, &storagev1.StorageClass{}, storageClass)

	// The claim still exists: only namespace deletion cascades it, and
	// that is the cluster's job, never an explicit purge here.
	_, err = clientset.CoreV1().PersistentVolumeClaims(cfg.Namespace).Get(context.Background(), utils.DataVolumeName+"-"+cfg.Name+"-0", metav1.GetOptions{})
	assert.NoError(t, err)
}
