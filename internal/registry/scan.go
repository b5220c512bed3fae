package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/systmms/tierup/internal/unit"
)

// ComposeFileNames are the file names the scanner recognises, in the order of
// preference used when a directory holds more than one.
var ComposeFileNames = []string{"compose.yaml", "compose.yml", "docker-compose.yaml", "docker-compose.yml"}

// Discovered is a unit found by the scanner.
type Discovered struct {
	Unit unit.Unit

	// Root is the scan root the unit was found under.
	Root string

	// RelDir is the unit directory relative to Root, slash separated.
	RelDir string

	// RelPath is the compose file relative to Root, slash separated.
	RelPath string
}

// Scan walks every root for compose files, skipping hidden directories, and
// returns at most one unit per directory sorted by compose path. Missing roots
// are reported through warn and skipped.
func Scan(roots []string, warn func(format string, args ...interface{})) ([]Discovered, error) {
	var found []Discovered

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			warn("scan root %s does not exist, skipping", root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			file := composeFileIn(path)
			if file == "" {
				return nil
			}

			u, perr := parseComposeUnit(file)
			if perr != nil {
				warn("%s: %v; using directory name", file, perr)
			}
			found = append(found, Discovered{
				Unit:    u,
				Root:    root,
				RelDir:  relSlash(root, path),
				RelPath: relSlash(root, file),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Unit.Source.ComposeFile < found[j].Unit.Source.ComposeFile
	})
	return found, nil
}

func composeFileIn(dir string) string {
	for _, name := range ComposeFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

type composeService struct {
	ContainerName string     `yaml:"container_name"`
	Healthcheck   *yaml.Node `yaml:"healthcheck"`
}

// parseComposeUnit derives a unit from a compose file. The unit is named after
// the container compose creates for the first service: its container_name, or
// "<project>-<service>-1" where the project is the top-level name key or the
// normalized directory name. A runtime health check is used when that service
// declares one. On error it still returns a unit named after the directory.
func parseComposeUnit(file string) (unit.Unit, error) {
	dirName := filepath.Base(filepath.Dir(file))
	if abs, err := filepath.Abs(filepath.Dir(file)); err == nil {
		dirName = filepath.Base(abs)
	}

	u := unit.Unit{
		Name:   dirName,
		Source: unit.Source{ComposeFile: file},
		Health: unit.HealthCheck{Kind: unit.HealthNone},
		Origin: unit.OriginScanned,
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return u, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return u, err
	}

	service, svcNode := firstService(&doc)
	if svcNode == nil {
		return u, nil
	}

	var svc composeService
	if err := svcNode.Decode(&svc); err != nil {
		return u, err
	}

	project := normalizeProjectName(topLevelString(&doc, "name"))
	if project == "" {
		project = normalizeProjectName(dirName)
	}
	u.Name = containerName(project, service, svc.ContainerName)

	if svc.Healthcheck != nil && !healthcheckDisabled(svc.Healthcheck) {
		u.Health.Kind = unit.HealthRuntime
	}
	return u, nil
}

var invalidProjectChars = regexp.MustCompile(`[^-_a-z0-9]`)

// normalizeProjectName applies compose's project name rules: lower case,
// only letters, digits, dashes and underscores, starting with a letter or
// digit.
func normalizeProjectName(name string) string {
	name = invalidProjectChars.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimLeft(name, "_-")
}

// containerName returns the name compose gives the first replica of service
// in project. An explicit container_name wins.
func containerName(project, service, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return project + "-" + service + "-1"
}

func topLevel(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	if top := doc.Content[0]; top.Kind == yaml.MappingNode {
		return top
	}
	return nil
}

func topLevelString(doc *yaml.Node, key string) string {
	top := topLevel(doc)
	if top == nil {
		return ""
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == key && top.Content[i+1].Kind == yaml.ScalarNode {
			return top.Content[i+1].Value
		}
	}
	return ""
}

// firstService returns the key and body of the first entry under services,
// keeping file order, which a map decode would lose.
func firstService(doc *yaml.Node) (string, *yaml.Node) {
	top := topLevel(doc)
	if top == nil {
		return "", nil
	}
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "services" {
			continue
		}
		services := top.Content[i+1]
		if services.Kind != yaml.MappingNode || len(services.Content) < 2 {
			return "", nil
		}
		return services.Content[0].Value, services.Content[1]
	}
	return "", nil
}

func healthcheckDisabled(n *yaml.Node) bool {
	var hc struct {
		Disable bool     `yaml:"disable"`
		Test    []string `yaml:"test"`
	}
	if err := n.Decode(&hc); err != nil {
		return false
	}
	return hc.Disable || (len(hc.Test) > 0 && hc.Test[0] == "NONE")
}
