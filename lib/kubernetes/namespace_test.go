package kubernetes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestEnsureNamespaceCreatesAndIsIdempotent(t *testing.T) {
	client := &Client{Clientset: fake.NewSimpleClientset()}

	require.NoError(t, client.EnsureNamespace(context.Background(), "cache"))

	namespace, err := client.Clientset.CoreV1().Namespaces().Get(context.Background(), "cache", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cachectl", namespace.Labels["managed-by"])

	// Second call is a no-op.
	require.NoError(t, client.EnsureNamespace(context.Background(), "cache"))
}

func TestNamespaceExists(t *testing.T) {
	client := &Client{Clientset: fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "cache"}},
	)}

	exists, err := client.NamespaceExists(context.Background(), "cache")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.NamespaceExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteNamespaceToleratesAbsence(t *testing.T) {
	client := &Client{Clientset: fake.NewSimpleClientset()}

	assert.NoError(t, client.DeleteNamespace(context.Background(), "never-existed"))
}
