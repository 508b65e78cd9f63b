package kubernetes

import (
	"bytes"
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	typedkubernetes "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// ExecInPod runs a command in a container through the exec subresource
// and returns captured stdout and stderr. Used by the functional verifier
// to drive the cache CLI inside the running pods.
func (c *Client) ExecInPod(ctx context.Context, namespace, pod, container string, command []string) (string, string, error) {
	clientset, ok := c.Clientset.(*typedkubernetes.Clientset)
	if !ok || c.RestConfig == nil {
		return "", "", fmt.Errorf("pod exec requires a real cluster connection")
	}

	execRequest := clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.RestConfig, "POST", execRequest.URL())
	if err != nil {
		return "", "", fmt.Errorf("error creating SPDY executor: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("exec in pod %s/%s failed: %v", namespace, pod, err)
	}
	return stdout.String(), stderr.String(), nil
}
