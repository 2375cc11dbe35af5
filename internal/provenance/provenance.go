// Package provenance assembles the W3C-PROV JSON-LD document described in
// §4.6: one document per cycle, covering every stage's inputs and outputs,
// checksummed and hash-chained to the previous cycle's document. Grounded on
// bronze-copier's internal/tables/checksum.go for the checksum convention and
// its checkpoint package's atomic-write discipline for document persistence.
package provenance

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"time"

	"github.com/tft-collector/tftcollector/internal/identity"
)

// Entity is one artifact referenced by the provenance graph. File-backed
// entities (stage inputs/outputs) carry Path/ByteSize/Checksum/LastModified;
// non-file entities (per-category errors, per-dependency software) carry
// only ID/Label/Type.
type Entity struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Type         string    `json:"type,omitempty"`
	Path         string    `json:"path,omitempty"`
	ByteSize     int64     `json:"byteSize,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// Activity is one pipeline stage (or the overall workflow), with a duration
// inferred from the mtimes of its inputs and outputs.
type Activity struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	StartedAtTime   time.Time `json:"startedAtTime"`
	EndedAtTime     time.Time `json:"endedAtTime"`
	DurationSeconds float64   `json:"durationSeconds"`
	Used            []string  `json:"used"`
	Generated       []string  `json:"generated"`
}

// Agent is a person, software component, or organization associated with
// the workflow.
type Agent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Relation is one PROV relation edge (wasGeneratedBy, used, wasDerivedFrom,
// wasAttributedTo, wasAssociatedWith, wasInformedBy, wasInfluencedBy).
type Relation struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Document is the full per-cycle PROV-JSONLD document written to
// provenance/workflow_<cycleId>.prov.json.
type Document struct {
	Context       map[string]string `json:"@context"`
	CycleID       string            `json:"cycleId"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	Entities      []Entity          `json:"entities"`
	Activities    []Activity        `json:"activities"`
	Agents        []Agent           `json:"agents"`
	Relations     []Relation        `json:"relations"`
	ChainPrevHash string            `json:"chainPrevHash,omitempty"`
	ChainHash     string            `json:"chainHash"`
}

// StageIO describes one stage's declared inputs and outputs, the unit the
// Assembler consumes to build one Activity plus its Entities.
type StageIO struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Assembler builds a Document from a cycle's stage I/O declarations.
type Assembler struct {
	orchestratorVersion string
	workflowVersion     string
}

// NewAssembler constructs an Assembler tagging every document with the
// given orchestrator/workflow version strings (used as Agent names).
func NewAssembler(orchestratorVersion, workflowVersion string) *Assembler {
	return &Assembler{orchestratorVersion: orchestratorVersion, workflowVersion: workflowVersion}
}

// ErrorCounts maps an error taxonomy category (§7) to the number of
// occurrences recorded for the cycle, the source for the per-category error
// entities §4.6 requires.
type ErrorCounts map[string]int

// Assemble builds the Document for one cycle from its stage list. previous,
// if non-nil, supplies the chain link the new document extends. errorCounts
// and dependencies seed the per-category error entities and per-dependency
// entities §4.6 requires alongside the per-artifact ones.
func (a *Assembler) Assemble(cycleID string, stages []StageIO, previous *Document, errorCounts ErrorCounts, dependencies []string) (*Document, error) {
	doc := &Document{
		Context: map[string]string{
			"prov": "http://www.w3.org/ns/prov#",
			"tft":  "https://tftcollector.example/schema#",
		},
		CycleID:     cycleID,
		GeneratedAt: time.Now().UTC(),
	}

	entityByPath := make(map[string]string)
	generatedByStage := make(map[string][]string)
	var earliestStart, latestEnd time.Time

	for _, stage := range stages {
		usedIDs := a.internEntities(doc, entityByPath, stage.Inputs)
		generatedIDs := a.internEntities(doc, entityByPath, stage.Outputs)
		generatedByStage[stage.Name] = generatedIDs

		start := latestMtime(stage.Inputs)
		end := latestMtime(stage.Outputs)
		if start.IsZero() {
			start = time.Now().UTC()
		}
		if end.IsZero() {
			end = time.Now().UTC()
		}
		if earliestStart.IsZero() || start.Before(earliestStart) {
			earliestStart = start
		}
		if end.After(latestEnd) {
			latestEnd = end
		}

		activityID := "activity:" + stage.Name
		doc.Activities = append(doc.Activities, Activity{
			ID:              activityID,
			Label:           stage.Name,
			StartedAtTime:   start,
			EndedAtTime:     end,
			DurationSeconds: end.Sub(start).Seconds(),
			Used:            usedIDs,
			Generated:       generatedIDs,
		})

		for _, eid := range usedIDs {
			doc.Relations = append(doc.Relations, Relation{Type: "used", From: activityID, To: eid})
		}
		for _, eid := range generatedIDs {
			doc.Relations = append(doc.Relations, Relation{Type: "wasGeneratedBy", From: eid, To: activityID})
			for _, uid := range usedIDs {
				doc.Relations = append(doc.Relations, Relation{Type: "wasDerivedFrom", From: eid, To: uid})
			}
		}
	}

	// wasInformedBy: an activity is informed by every activity whose output
	// it consumed as input, i.e. the DAG edges §4.5 declares.
	for _, downstream := range stages {
		for _, in := range downstream.Inputs {
			for _, upstream := range stages {
				if upstream.Name == downstream.Name {
					continue
				}
				for _, out := range upstream.Outputs {
					if out == in {
						doc.Relations = append(doc.Relations, Relation{
							Type: "wasInformedBy",
							From: "activity:" + downstream.Name,
							To:   "activity:" + upstream.Name,
						})
					}
				}
			}
		}
	}

	if earliestStart.IsZero() {
		earliestStart = time.Now().UTC()
	}
	if latestEnd.IsZero() {
		latestEnd = earliestStart
	}
	doc.Activities = append(doc.Activities, Activity{
		ID:              "activity:workflow",
		Label:           "workflow",
		StartedAtTime:   earliestStart,
		EndedAtTime:     latestEnd,
		DurationSeconds: latestEnd.Sub(earliestStart).Seconds(),
	})
	for _, stage := range stages {
		doc.Relations = append(doc.Relations, Relation{Type: "wasInformedBy", From: "activity:workflow", To: "activity:" + stage.Name})
	}

	a.addAgents(doc)
	a.addAttributions(doc, generatedByStage)
	a.addErrorEntities(doc, errorCounts)
	a.addDependencyEntities(doc, dependencies)

	if previous != nil {
		prevHash, err := hashDocument(previous)
		if err != nil {
			return nil, err
		}
		doc.ChainPrevHash = prevHash
	}
	chainHash, err := hashDocument(doc)
	if err != nil {
		return nil, err
	}
	doc.ChainHash = chainHash
	return doc, nil
}

// internEntities interns each existing path as an Entity, skipping paths
// that do not exist yet: some stages in the errgroup-parallel section of
// §4.5's DAG (cross_cycle, parquet) may not have written their outputs by
// the time the provenance stage runs alongside them, and the activity for
// those stages is still recorded even when its output entity is not yet
// observable.
func (a *Assembler) internEntities(doc *Document, seen map[string]string, paths []string) []string {
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if id, ok := seen[p]; ok {
			ids = append(ids, id)
			continue
		}
		entity, err := entityFor(p)
		if err != nil {
			continue
		}
		doc.Entities = append(doc.Entities, entity)
		seen[p] = entity.ID
		ids = append(ids, entity.ID)
	}
	return ids
}

// addAttributions links each generated entity to the agent responsible for
// it: raw collection output is attributed to the upstream data source,
// everything the orchestrator computed downstream is attributed to it.
func (a *Assembler) addAttributions(doc *Document, generatedByStage map[string][]string) {
	for _, eid := range generatedByStage["collect"] {
		doc.Relations = append(doc.Relations, Relation{Type: "wasAttributedTo", From: eid, To: "agent:riot-games"})
	}
	for stage, ids := range generatedByStage {
		if stage == "collect" {
			continue
		}
		for _, eid := range ids {
			doc.Relations = append(doc.Relations, Relation{Type: "wasAttributedTo", From: eid, To: "agent:orchestrator"})
		}
	}
}

// addErrorEntities adds one entity per non-empty error category (§7's
// taxonomy) and links the collect activity to it via wasInfluencedBy, so a
// reader of the document can see which failure categories shaped the cycle
// without re-reading the artifact's error_summary.
func (a *Assembler) addErrorEntities(doc *Document, counts ErrorCounts) {
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		count := counts[category]
		if count <= 0 {
			continue
		}
		id := "entity:error/" + category
		doc.Entities = append(doc.Entities, Entity{
			ID:    id,
			Label: fmt.Sprintf("%s (%d)", category, count),
			Type:  "tft:ErrorEntity",
		})
		doc.Relations = append(doc.Relations, Relation{Type: "wasInfluencedBy", From: "activity:collect", To: id})
	}
}

// addDependencyEntities records the third-party libraries exercised by this
// cycle's pipeline run as non-file entities used by the overall workflow
// activity.
func (a *Assembler) addDependencyEntities(doc *Document, dependencies []string) {
	for _, dep := range dependencies {
		id := "entity:dependency/" + dep
		doc.Entities = append(doc.Entities, Entity{
			ID:    id,
			Label: dep,
			Type:  "tft:DependencyEntity",
		})
		doc.Relations = append(doc.Relations, Relation{Type: "used", From: "activity:workflow", To: id})
	}
}

func entityFor(path string) (Entity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entity{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Entity{}, err
	}
	return Entity{
		ID:           "entity:" + filepath.Base(path),
		Label:        filepath.Base(path),
		Path:         path,
		ByteSize:     info.Size(),
		Checksum:     identity.ChecksumBytes(data),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func latestMtime(paths []string) time.Time {
	var latest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest.UTC()
}

func (a *Assembler) addAgents(doc *Document) {
	hostname, _ := os.Hostname()
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	doc.Agents = append(doc.Agents,
		Agent{ID: "agent:orchestrator", Type: "SoftwareAgent", Name: a.orchestratorVersion},
		Agent{ID: "agent:workflow", Type: "SoftwareAgent", Name: a.workflowVersion},
		Agent{ID: "agent:operator", Type: "Person", Name: fmt.Sprintf("%s@%s", username, hostname)},
		Agent{ID: "agent:riot-games", Type: "Organization", Name: "Riot Games API"},
	)
	for _, ag := range doc.Agents {
		doc.Relations = append(doc.Relations, Relation{Type: "wasAssociatedWith", From: "activity:workflow", To: ag.ID})
	}
}

// hashDocument computes the chain hash over doc's canonical JSON with
// ChainHash zeroed, per §4.6's hash-chaining algorithm.
func hashDocument(doc *Document) (string, error) {
	clone := *doc
	clone.ChainHash = ""
	canon, err := identity.Canonicalize(clone)
	if err != nil {
		return "", err
	}
	return identity.ChecksumBytes(canon), nil
}

// Save writes doc atomically to path.
func Save(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("provenance: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("provenance: create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("provenance: write temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a Document from path, returning nil, nil if it does not exist
// (used by Assemble's caller to determine the chain predecessor).
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("provenance: read: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("provenance: unmarshal: %w", err)
	}
	return &doc, nil
}
