package catalog

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// ConfigMapKeyProfiles is the reserved ConfigMap data key holding the
// YAML-encoded list of deployment profiles, if any.
const ConfigMapKeyProfiles = "_profiles.yaml"

// K8sSource reads one ServiceConfig per ConfigMap data entry, each value
// a YAML-encoded document, plus an optional reserved key for profiles.
// It is one more entry in the catalog's ordered search path alongside
// FileSource (spec.md §4.A).
type K8sSource struct {
	Client       kubernetes.Interface
	Namespace    string
	ConfigMap    string
}

func NewK8sSource(client kubernetes.Interface, namespace, configMap string) *K8sSource {
	return &K8sSource{Client: client, Namespace: namespace, ConfigMap: configMap}
}

func (k *K8sSource) Name() string {
	return fmt.Sprintf("configmap:%s/%s", k.Namespace, k.ConfigMap)
}

func (k *K8sSource) Load() (sourceFile, error) {
	return k.load(context.Background())
}

func (k *K8sSource) load(ctx context.Context) (sourceFile, error) {
	var out sourceFile

	cm, err := k.Client.CoreV1().ConfigMaps(k.Namespace).Get(ctx, k.ConfigMap, metav1.GetOptions{})
	if err != nil {
		return out, fmt.Errorf("fetching ConfigMap %s/%s: %w", k.Namespace, k.ConfigMap, err)
	}

	keys := make([]string, 0, len(cm.Data))
	for key := range cm.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys) // deterministic decode order

	for _, key := range keys {
		value := cm.Data[key]
		if key == ConfigMapKeyProfiles {
			if err := yaml.Unmarshal([]byte(value), &out.Profiles); err != nil {
				return out, fmt.Errorf("parsing profiles from ConfigMap key %s: %w", key, err)
			}
			continue
		}
		var svc ServiceConfig
		if err := yaml.Unmarshal([]byte(value), &svc); err != nil {
			return out, fmt.Errorf("parsing ConfigMap key %s: %w", key, err)
		}
		if svc.Name == "" {
			svc.Name = key
		}
		out.Services = append(out.Services, svc)
	}
	return out, nil
}

// Watch returns a channel of ConfigMap update events for hot-reload,
// matching the catalog's fsnotify-based reload for FileSource.
func (k *K8sSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := k.Client.CoreV1().ConfigMaps(k.Namespace).Watch(ctx, metav1.SingleObject(metav1.ObjectMeta{Name: k.ConfigMap}))
	if err != nil {
		return nil, fmt.Errorf("watching ConfigMap %s/%s: %w", k.Namespace, k.ConfigMap, err)
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.ResultChan():
				if !ok {
					return
				}
				if event.Type == watch.Modified || event.Type == watch.Added {
					select {
					case notify <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
	return notify, nil
}
