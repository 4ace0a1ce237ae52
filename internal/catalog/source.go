package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Source is one entry in the ordered search path of spec.md §4.A. A
// later source's entries override an earlier source's entries by
// service name.
type Source interface {
	Name() string
	Load() (sourceFile, error)
}

// FileSource reads services/*.yaml and profiles.yaml out of a single
// directory, mirroring the teacher's config/storage.go per-entity-type
// directory convention.
type FileSource struct {
	Dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

func (f *FileSource) Name() string { return f.Dir }

func (f *FileSource) Load() (sourceFile, error) {
	var out sourceFile

	servicesDir := filepath.Join(f.Dir, "services")
	entries, err := os.ReadDir(servicesDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return out, fmt.Errorf("reading %s: %w", servicesDir, err)
		}
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(servicesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return out, fmt.Errorf("reading %s: %w", path, err)
		}

		var fileServices []ServiceConfig
		if err := yaml.Unmarshal(data, &fileServices); err != nil {
			// Allow a single-service document too.
			var single ServiceConfig
			if err2 := yaml.Unmarshal(data, &single); err2 != nil {
				return out, fmt.Errorf("parsing %s: %w", path, err)
			}
			fileServices = []ServiceConfig{single}
		}

		for _, svc := range fileServices {
			if seen[svc.Name] {
				return out, fmt.Errorf("duplicate service name %q within source %s", svc.Name, f.Dir)
			}
			seen[svc.Name] = true
			out.Services = append(out.Services, svc)
		}
	}

	profilesPath := filepath.Join(f.Dir, "profiles.yaml")
	data, err := os.ReadFile(profilesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return out, fmt.Errorf("reading %s: %w", profilesPath, err)
		}
		return out, nil
	}
	if err := yaml.Unmarshal(data, &out.Profiles); err != nil {
		return out, fmt.Errorf("parsing %s: %w", profilesPath, err)
	}
	return out, nil
}

// Watch returns a channel that receives a signal whenever a file under
// the source directory changes, mirroring K8sSource.Watch's channel
// shape so a caller can hot-reload either source the same way.
func (f *FileSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	servicesDir := filepath.Join(f.Dir, "services")
	if err := watcher.Add(servicesDir); err != nil && !os.IsNotExist(err) {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", servicesDir, err)
	}
	if err := watcher.Add(f.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", f.Dir, err)
	}

	events := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case events <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}
