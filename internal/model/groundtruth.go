package model

import "time"

// Complexity tiers assigned to ground-truth documents by the verifier.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// GroundTruthDocument is a hand-verified ordinance used as a scoring
// reference. Immutable once created except by explicit correction.
type GroundTruthDocument struct {
	ID               string    `json:"id"`
	DocumentName     string    `json:"document_name"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	FilePath         string    `json:"file_path,omitempty"`
	Town             string    `json:"town"`
	County           string    `json:"county,omitempty"`
	State            string    `json:"state"`
	NumberOfZones    int       `json:"number_of_zones"`
	Complexity       string    `json:"complexity,omitempty"`
	Description      string    `json:"description,omitempty"`
	VerifiedBy       string    `json:"verified_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// GroundTruthRequirement is one verified zone record, keyed by
// (ground_truth_doc_id, zone). Comparison input only; never written by the
// extraction pipeline.
type GroundTruthRequirement struct {
	ID               string `json:"id"`
	GroundTruthDocID string `json:"ground_truth_doc_id"`
	Zone             string `json:"zone"`
	ZoneDescription  string `json:"zone_description,omitempty"`
	RequirementFields

	CreatedAt time.Time `json:"created_at"`
}
