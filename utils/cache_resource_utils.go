package utils

import (
	"fmt"

	"github.com/cacheops/cachectl/models"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	policyv1 "k8s.io/api/policy/v1"
	storagev1 "k8s.io/api/storage/v1"
	resource "k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const (
	// ContainerName is the cache container inside every pod.
	ContainerName = "cache"

	// DataVolumeName backs the cache working directory in both the
	// persistent and the ephemeral variant.
	DataVolumeName = "data"

	// DataMountPath is where the cache writes its dataset.
	DataMountPath = "/data"

	// SecretPasswordKey is the key holding the credential inside the
	// auth Secret.
	SecretPasswordKey = "password"

	zoneTopologyKey = "topology.kubernetes.io/zone"
)

// GetResourceLabels returns the label set stamped on every rendered
// resource.
func GetResourceLabels(cfg models.DeploymentConfig) map[string]string {
	return map[string]string{
		"app":        cfg.Name,
		"managed-by": "cachectl",
	}
}

func selectorLabels(cfg models.DeploymentConfig) map[string]string {
	return map[string]string{"app": cfg.Name}
}

// BuildNamespace returns the namespace definition included in the
// manifest set (the applier additionally ensures it out of band so the
// Secret can be created first).
func BuildNamespace(cfg models.DeploymentConfig) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   cfg.Namespace,
			Labels: map[string]string{"managed-by": "cachectl"},
		},
	}
}

// BuildServiceAccount returns the pod identity for the cache workload.
func BuildServiceAccount(cfg models.DeploymentConfig) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.ServiceAccountName(),
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
	}
}

// BuildHeadlessService returns the governing service that gives each pod
// a stable DNS identity for replication.
func BuildHeadlessService(cfg models.DeploymentConfig) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.HeadlessServiceName(),
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
		Spec: corev1.ServiceSpec{
			ClusterIP:                "None",
			PublishNotReadyAddresses: true,
			Selector:                 selectorLabels(cfg),
			Ports: []corev1.ServicePort{
				{
					Name:       "cache",
					Port:       int32(cfg.Port),
					TargetPort: intstr.FromInt(cfg.Port),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}

// BuildClientService returns the ClusterIP service client applications
// connect through.
func BuildClientService(cfg models.DeploymentConfig) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: selectorLabels(cfg),
			Ports: []corev1.ServicePort{
				{
					Name:       "cache",
					Port:       int32(cfg.Port),
					TargetPort: intstr.FromInt(cfg.Port),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}

// BuildNetworkPolicy restricts cache ingress to pods in the same
// namespace, on the cache port only.
func BuildNetworkPolicy(cfg models.DeploymentConfig) *networkingv1.NetworkPolicy {
	cachePort := intstr.FromInt(cfg.Port)
	tcp := corev1.ProtocolTCP
	return &networkingv1.NetworkPolicy{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "NetworkPolicy"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{MatchLabels: selectorLabels(cfg)},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress: []networkingv1.NetworkPolicyIngressRule{
				{
					From: []networkingv1.NetworkPolicyPeer{
						{PodSelector: &metav1.LabelSelector{}},
					},
					Ports: []networkingv1.NetworkPolicyPort{
						{Port: &cachePort, Protocol: &tcp},
					},
				},
			},
		},
	}
}

// BuildDisruptionBudget returns the PDB with minAvailable derived from
// the replica count (2 when replicas >= 3, else 1).
func BuildDisruptionBudget(cfg models.DeploymentConfig) *policyv1.PodDisruptionBudget {
	minAvailable := intstr.FromInt(cfg.MinAvailable())
	return &policyv1.PodDisruptionBudget{
		TypeMeta: metav1.TypeMeta{APIVersion: "policy/v1", Kind: "PodDisruptionBudget"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
		Spec: policyv1.PodDisruptionBudgetSpec{
			MinAvailable: &minAvailable,
			Selector:     &metav1.LabelSelector{MatchLabels: selectorLabels(cfg)},
		},
	}
}

// startupScript decides the replication role from the pod ordinal: pod 0
// starts as primary, everything else replicates from it through the
// headless service. Persistence mode switches the storage flags.
func startupScript(cfg models.DeploymentConfig) string {
	persistenceFlags := "--save '' --appendonly no"
	if cfg.PersistenceEnabled {
		persistenceFlags = "--appendonly yes --dir " + DataMountPath
	}
	return fmt.Sprintf(`ORDINAL="${HOSTNAME##*-}"
if [ "$ORDINAL" = "0" ]; then
  exec redis-server --port %d --requirepass "$CACHE_PASSWORD" %s
fi
exec redis-server --port %d --requirepass "$CACHE_PASSWORD" --masterauth "$CACHE_PASSWORD" --replicaof %s %d %s`,
		cfg.Port, persistenceFlags,
		cfg.Port, cfg.PrimaryHost(), cfg.Port, persistenceFlags)
}

// BuildStatefulSet returns the cache workload. The persistent and the
// ephemeral variant differ structurally: only the former carries a
// volumeClaimTemplate and a storage class reference, the latter mounts an
// emptyDir under the same name.
func BuildStatefulSet(cfg models.DeploymentConfig, topology models.TopologyProfile) *appsv1.StatefulSet {
	labels := GetResourceLabels(cfg)
	replicas := int32(cfg.Replicas)

	podSpec := corev1.PodSpec{
		ServiceAccountName:            cfg.ServiceAccountName(),
		TerminationGracePeriodSeconds: Int64Ptr(cfg.TerminationGraceSeconds),
		Containers: []corev1.Container{
			{
				Name:    ContainerName,
				Image:   cfg.Image,
				Command: []string{"sh", "-c", startupScript(cfg)},
				Ports: []corev1.ContainerPort{
					{
						Name:          "cache",
						ContainerPort: int32(cfg.Port),
						Protocol:      corev1.ProtocolTCP,
					},
				},
				Env: []corev1.EnvVar{
					{
						Name: "CACHE_PASSWORD",
						ValueFrom: &corev1.EnvVarSource{
							SecretKeyRef: &corev1.SecretKeySelector{
								LocalObjectReference: corev1.LocalObjectReference{Name: cfg.SecretName()},
								Key:                  SecretPasswordKey,
							},
						},
					},
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cfg.Resources.CPURequest),
						corev1.ResourceMemory: resource.MustParse(cfg.Resources.MemoryRequest),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse(cfg.Resources.CPULimit),
						corev1.ResourceMemory: resource.MustParse(cfg.Resources.MemoryLimit),
					},
				},
				ReadinessProbe: &corev1.Probe{
					ProbeHandler: corev1.ProbeHandler{
						Exec: &corev1.ExecAction{
							Command: []string{"sh", "-c", `redis-cli -a "$CACHE_PASSWORD" --no-auth-warning ping | grep -q PONG`},
						},
					},
					InitialDelaySeconds: 5,
					PeriodSeconds:       5,
					TimeoutSeconds:      3,
				},
				LivenessProbe: &corev1.Probe{
					ProbeHandler: corev1.ProbeHandler{
						TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt(cfg.Port)},
					},
					InitialDelaySeconds: 15,
					PeriodSeconds:       10,
				},
				VolumeMounts: []corev1.VolumeMount{
					{Name: DataVolumeName, MountPath: DataMountPath},
				},
			},
		},
	}

	if topology.SpreadEnabled {
		podSpec.TopologySpreadConstraints = []corev1.TopologySpreadConstraint{
			{
				MaxSkew:           1,
				TopologyKey:       zoneTopologyKey,
				WhenUnsatisfiable: corev1.ScheduleAnyway,
				LabelSelector:     &metav1.LabelSelector{MatchLabels: selectorLabels(cfg)},
			},
		}
	}

	statefulSet := &appsv1.StatefulSet{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    &replicas,
			ServiceName: cfg.HeadlessServiceName(),
			Selector:    &metav1.LabelSelector{MatchLabels: selectorLabels(cfg)},
			UpdateStrategy: appsv1.StatefulSetUpdateStrategy{
				Type: appsv1.RollingUpdateStatefulSetStrategyType,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}

	if cfg.PersistenceEnabled {
		storageClassName := cfg.StorageClassName
		statefulSet.Spec.VolumeClaimTemplates = []corev1.PersistentVolumeClaim{
			{
				TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
				ObjectMeta: metav1.ObjectMeta{
					Name:   DataVolumeName,
					Labels: labels,
				},
				Spec: corev1.PersistentVolumeClaimSpec{
					AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
					StorageClassName: &storageClassName,
					Resources: corev1.VolumeResourceRequirements{
						Requests: corev1.ResourceList{
							corev1.ResourceStorage: resource.MustParse(cfg.VolumeSize),
						},
					},
				},
			},
		}
	} else {
		statefulSet.Spec.Template.Spec.Volumes = []corev1.Volume{
			{
				Name: DataVolumeName,
				VolumeSource: corev1.VolumeSource{
					EmptyDir: &corev1.EmptyDirVolumeSource{},
				},
			},
		}
	}

	return statefulSet
}

// BuildSecret returns the credential Secret. Provisioned out of band by
// the applier and deliberately never written to the manifest file.
func BuildSecret(cfg models.DeploymentConfig) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      cfg.SecretName(),
			Namespace: cfg.Namespace,
			Labels:    GetResourceLabels(cfg),
		},
		Type: corev1.SecretTypeOpaque,
		StringData: map[string]string{
			SecretPasswordKey: cfg.Password,
		},
	}
}

// BuildStorageClass returns the gp3 storage class for persistent
// deployments on clusters that do not ship a suitable default. Durable by
// design: the destroyer never touches it.
func BuildStorageClass(cfg models.DeploymentConfig) *storagev1.StorageClass {
	reclaim := corev1.PersistentVolumeReclaimDelete
	binding := storagev1.VolumeBindingWaitForFirstConsumer
	return &storagev1.StorageClass{
		TypeMeta: metav1.TypeMeta{APIVersion: "storage.k8s.io/v1", Kind: "StorageClass"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   cfg.StorageClassName,
			Labels: map[string]string{"managed-by": "cachectl"},
		},
		Provisioner:          "ebs.csi.aws.com",
		ReclaimPolicy:        &reclaim,
		VolumeBindingMode:    &binding,
		AllowVolumeExpansion: BoolPtr(true),
		Parameters: map[string]string{
			"type":      "gp3",
			"encrypted": "true",
		},
	}
}
