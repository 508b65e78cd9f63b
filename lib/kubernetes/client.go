package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv1beta1 "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Client bundles the typed clientset, the optional metrics clientset and
// the rest config (needed for the exec subresource).
type Client struct {
	Clientset     kubernetes.Interface
	MetricsClient metricsv1beta1.Interface
	RestConfig    *rest.Config
}

// NewClient builds a client from, in order: a kubectl proxy address
// (K8S_PROXY_URL), an explicit or default kubeconfig, or the in-cluster
// service account.
func NewClient() (*Client, error) {
	config, err := resolveConfig()
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %v", err)
	}

	// Metrics are strictly optional: the inspector degrades to
	// requests/limits only when the metrics API is unavailable.
	metricsClient, err := metricsv1beta1.NewForConfig(config)
	if err != nil {
		log.Warn().Err(err).Msg("unable to create metrics client, pod usage will be unavailable")
		metricsClient = nil
	}

	c := &Client{
		Clientset:  clientset,
		RestConfig: config,
	}
	if metricsClient != nil {
		c.MetricsClient = metricsClient
	}
	return c, nil
}

func resolveConfig() (*rest.Config, error) {
	if proxyURL := os.Getenv("K8S_PROXY_URL"); proxyURL != "" {
		// kubectl proxy handles auth; TLS is terminated locally.
		return &rest.Config{
			Host:            proxyURL,
			TLSClientConfig: rest.TLSClientConfig{Insecure: true},
		}, nil
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}
	if kubeconfig != "" {
		if _, err := os.Stat(kubeconfig); err == nil {
			config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
			if err != nil {
				return nil, fmt.Errorf("failed to load kubeconfig %s: %v", kubeconfig, err)
			}
			return config, nil
		}
	}

	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("no kubectl proxy, kubeconfig or in-cluster config available: %v", err)
	}
	return config, nil
}
