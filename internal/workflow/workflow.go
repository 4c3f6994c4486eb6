// Package workflow models the GitHub Actions pipeline definition this
// repository ships. It parses the workflow file, validates its structure,
// evaluates which repository events would start it and cross-checks the
// make targets it invokes against the project Makefile.
package workflow

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workflow is a parsed GitHub Actions workflow definition.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers lists the events that start the pipeline.
type Triggers struct {
	Push        *PushTrigger        `yaml:"push"`
	PullRequest *PullRequestTrigger `yaml:"pull_request"`
}

// PushTrigger filters push events by branch and by changed paths.
type PushTrigger struct {
	Branches    []string `yaml:"branches"`
	PathsIgnore []string `yaml:"paths-ignore"`
}

// PullRequestTrigger filters pull request events by target branch.
type PullRequestTrigger struct {
	Branches []string `yaml:"branches"`
}

// Job is one entry under the jobs key.
type Job struct {
	Name     string    `yaml:"name"`
	RunsOn   string    `yaml:"runs-on"`
	Strategy *Strategy `yaml:"strategy"`
	Steps    []Step    `yaml:"steps"`
}

// Strategy holds the job matrix.
type Strategy struct {
	Matrix map[string][]string `yaml:"matrix"`
}

// Step is a single job step, either an action reference or a shell command.
type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	Run  string            `yaml:"run"`
	With map[string]string `yaml:"with"`
}

// Event describes a repository event the way the CI platform sees it.
type Event struct {
	// Name is the event name, "push" or "pull_request".
	Name string

	// Branch is the branch a push landed on.
	Branch string

	// TargetBranch is the base branch of a pull request.
	TargetBranch string

	// ChangedPaths lists the files a push touched. An empty list means
	// the paths are unknown and path filters are not applied.
	ChangedPaths []string
}

var (
	matrixRefPattern  = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_-]+)\s*\}\}`)
	makeCallPattern   = regexp.MustCompile(`\bmake\s+([A-Za-z0-9][A-Za-z0-9_.-]*)`)
	makeTargetPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.-]*):`)
)

// Load reads and parses the workflow file at the given path.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file %s: %w", path, err)
	}
	return &w, nil
}

// Validate checks the workflow for the structural problems that would keep
// the CI platform from running it.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow has no name")
	}
	if w.On.Push == nil && w.On.PullRequest == nil {
		return fmt.Errorf("workflow %q declares no triggers", w.Name)
	}
	if len(w.Jobs) == 0 {
		return fmt.Errorf("workflow %q declares no jobs", w.Name)
	}
	for _, id := range w.jobIDs() {
		if err := w.Jobs[id].validate(id); err != nil {
			return err
		}
	}
	return nil
}

func (j Job) validate(id string) error {
	if j.RunsOn == "" {
		return fmt.Errorf("job %q has no runs-on", id)
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %q has no steps", id)
	}
	axes := map[string]bool{}
	if j.Strategy != nil {
		for axis, values := range j.Strategy.Matrix {
			if len(values) == 0 {
				return fmt.Errorf("job %q: matrix axis %q has no values", id, axis)
			}
			axes[axis] = true
		}
	}
	for i, step := range j.Steps {
		if (step.Uses != "") == (step.Run != "") {
			return fmt.Errorf("job %q step %d must set exactly one of uses or run", id, i)
		}
		for _, axis := range step.matrixRefs() {
			if !axes[axis] {
				return fmt.Errorf("job %q step %d references undefined matrix axis %q", id, i, axis)
			}
		}
	}
	return nil
}

// matrixRefs returns every matrix axis the step's expressions reference.
func (s Step) matrixRefs() []string {
	texts := []string{s.Name, s.Run}
	for _, v := range s.With {
		texts = append(texts, v)
	}
	var axes []string
	for _, text := range texts {
		for _, m := range matrixRefPattern.FindAllStringSubmatch(text, -1) {
			axes = append(axes, m[1])
		}
	}
	return axes
}

// ShouldRun reports whether the given event would start this workflow.
func (w *Workflow) ShouldRun(ev Event) bool {
	switch ev.Name {
	case "push":
		return w.On.Push != nil && w.On.Push.matches(ev)
	case "pull_request":
		return w.On.PullRequest != nil && w.On.PullRequest.matches(ev)
	default:
		return false
	}
}

func (t *PushTrigger) matches(ev Event) bool {
	if len(t.Branches) > 0 && !matchAny(t.Branches, ev.Branch) {
		return false
	}
	// paths-ignore skips the run only when every changed path is ignored.
	if len(t.PathsIgnore) > 0 && len(ev.ChangedPaths) > 0 {
		ignored := 0
		for _, p := range ev.ChangedPaths {
			if matchAny(t.PathsIgnore, p) {
				ignored++
			}
		}
		if ignored == len(ev.ChangedPaths) {
			return false
		}
	}
	return true
}

func (t *PullRequestTrigger) matches(ev Event) bool {
	return len(t.Branches) == 0 || matchAny(t.Branches, ev.TargetBranch)
}

func matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if matchGlob(p, s) {
			return true
		}
	}
	return false
}

// matchGlob implements the filter pattern subset GitHub Actions uses for
// branch and path filters: * and ? stop at path separators, ** crosses
// them.
func matchGlob(pattern, s string) bool {
	var re strings.Builder
	re.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				re.WriteString(".*")
				i++
			} else {
				re.WriteString("[^/]*")
			}
		case '?':
			re.WriteString("[^/]")
		default:
			re.WriteString(regexp.QuoteMeta(string(pattern[i])))
		}
	}
	re.WriteString("$")
	matched, err := regexp.MatchString(re.String(), s)
	return err == nil && matched
}

// MakeCommands returns every make target the workflow steps invoke, in
// job id and step order.
func (w *Workflow) MakeCommands() []string {
	var targets []string
	for _, id := range w.jobIDs() {
		for _, step := range w.Jobs[id].Steps {
			for _, m := range makeCallPattern.FindAllStringSubmatch(step.Run, -1) {
				targets = append(targets, m[1])
			}
		}
	}
	return targets
}

func (w *Workflow) jobIDs() []string {
	ids := make([]string, 0, len(w.Jobs))
	for id := range w.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MakeTargets parses the Makefile at the given path and returns the set
// of targets it defines.
func MakeTargets(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read makefile: %w", err)
	}
	targets := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		if m := makeTargetPattern.FindStringSubmatch(line); m != nil {
			targets[m[1]] = true
		}
	}
	return targets, nil
}

// VerifyMakeTargets checks that every make target the workflow invokes is
// defined in the Makefile at the given path.
func (w *Workflow) VerifyMakeTargets(makefilePath string) error {
	targets, err := MakeTargets(makefilePath)
	if err != nil {
		return err
	}
	for _, cmd := range w.MakeCommands() {
		if !targets[cmd] {
			return fmt.Errorf("workflow invokes make %s, which %s does not define", cmd, makefilePath)
		}
	}
	return nil
}
