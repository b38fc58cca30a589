package model

import (
	"strings"
	"time"
)

// DataSourceAIExtracted tags requirement rows written by the extraction pipeline.
const DataSourceAIExtracted = "AI_Extracted"

// NumericField identifies one canonical numeric requirement column.
type NumericField string

// Canonical numeric fields, grouped the way ordinances group them.
const (
	FieldInteriorMinLotAreaSqft     NumericField = "interior_min_lot_area_sqft"
	FieldInteriorMinLotFrontageFt   NumericField = "interior_min_lot_frontage_ft"
	FieldInteriorMinLotWidthFt      NumericField = "interior_min_lot_width_ft"
	FieldInteriorMinLotDepthFt      NumericField = "interior_min_lot_depth_ft"
	FieldCornerMinLotAreaSqft       NumericField = "corner_min_lot_area_sqft"
	FieldCornerMinLotFrontageFt     NumericField = "corner_min_lot_frontage_ft"
	FieldCornerMinLotWidthFt        NumericField = "corner_min_lot_width_ft"
	FieldCornerMinLotDepthFt        NumericField = "corner_min_lot_depth_ft"
	FieldMinCircleDiameterFt        NumericField = "min_circle_diameter_ft"
	FieldBuildableLotAreaSqft       NumericField = "buildable_lot_area_sqft"
	FieldPrincipalFrontYardFt       NumericField = "principal_front_yard_ft"
	FieldPrincipalSideYardFt        NumericField = "principal_side_yard_ft"
	FieldPrincipalStreetSideYardFt  NumericField = "principal_street_side_yard_ft"
	FieldPrincipalRearYardFt        NumericField = "principal_rear_yard_ft"
	FieldPrincipalStreetRearYardFt  NumericField = "principal_street_rear_yard_ft"
	FieldAccessoryFrontYardFt       NumericField = "accessory_front_yard_ft"
	FieldAccessorySideYardFt        NumericField = "accessory_side_yard_ft"
	FieldAccessoryStreetSideYardFt  NumericField = "accessory_street_side_yard_ft"
	FieldAccessoryRearYardFt        NumericField = "accessory_rear_yard_ft"
	FieldAccessoryStreetRearYardFt  NumericField = "accessory_street_rear_yard_ft"
	FieldMaxBuildingCoveragePercent NumericField = "max_building_coverage_percent"
	FieldMaxLotCoveragePercent      NumericField = "max_lot_coverage_percent"
	FieldMaxHeightStories           NumericField = "max_height_stories"
	FieldMaxHeightFeetTotal         NumericField = "max_height_feet_total"
	FieldMinGrossFloorAreaFirstSqft NumericField = "min_gross_floor_area_first_floor_sqft"
	FieldMinGrossFloorAreaMultiSqft NumericField = "min_gross_floor_area_multistory_sqft"
	FieldMaxGrossFloorAreaAllSqft   NumericField = "max_gross_floor_area_all_structures_sqft"
	FieldMaximumFAR                 NumericField = "maximum_far"
	FieldMaximumDensityUnitsAcre    NumericField = "maximum_density_units_per_acre"
)

// NumericFields lists every canonical numeric field in storage order.
var NumericFields = []NumericField{
	FieldInteriorMinLotAreaSqft,
	FieldInteriorMinLotFrontageFt,
	FieldInteriorMinLotWidthFt,
	FieldInteriorMinLotDepthFt,
	FieldCornerMinLotAreaSqft,
	FieldCornerMinLotFrontageFt,
	FieldCornerMinLotWidthFt,
	FieldCornerMinLotDepthFt,
	FieldMinCircleDiameterFt,
	FieldBuildableLotAreaSqft,
	FieldPrincipalFrontYardFt,
	FieldPrincipalSideYardFt,
	FieldPrincipalStreetSideYardFt,
	FieldPrincipalRearYardFt,
	FieldPrincipalStreetRearYardFt,
	FieldAccessoryFrontYardFt,
	FieldAccessorySideYardFt,
	FieldAccessoryStreetSideYardFt,
	FieldAccessoryRearYardFt,
	FieldAccessoryStreetRearYardFt,
	FieldMaxBuildingCoveragePercent,
	FieldMaxLotCoveragePercent,
	FieldMaxHeightStories,
	FieldMaxHeightFeetTotal,
	FieldMinGrossFloorAreaFirstSqft,
	FieldMinGrossFloorAreaMultiSqft,
	FieldMaxGrossFloorAreaAllSqft,
	FieldMaximumFAR,
	FieldMaximumDensityUnitsAcre,
}

// RequirementFields holds the canonical numeric requirement values shared by
// extracted records and ground truth. Every field is either a finite number
// or nil; max_height_stories is stored as a whole number.
type RequirementFields struct {
	InteriorMinLotAreaSqft     *float64 `json:"interior_min_lot_area_sqft,omitempty"`
	InteriorMinLotFrontageFt   *float64 `json:"interior_min_lot_frontage_ft,omitempty"`
	InteriorMinLotWidthFt      *float64 `json:"interior_min_lot_width_ft,omitempty"`
	InteriorMinLotDepthFt      *float64 `json:"interior_min_lot_depth_ft,omitempty"`
	CornerMinLotAreaSqft       *float64 `json:"corner_min_lot_area_sqft,omitempty"`
	CornerMinLotFrontageFt     *float64 `json:"corner_min_lot_frontage_ft,omitempty"`
	CornerMinLotWidthFt        *float64 `json:"corner_min_lot_width_ft,omitempty"`
	CornerMinLotDepthFt        *float64 `json:"corner_min_lot_depth_ft,omitempty"`
	MinCircleDiameterFt        *float64 `json:"min_circle_diameter_ft,omitempty"`
	BuildableLotAreaSqft       *float64 `json:"buildable_lot_area_sqft,omitempty"`
	PrincipalFrontYardFt       *float64 `json:"principal_front_yard_ft,omitempty"`
	PrincipalSideYardFt        *float64 `json:"principal_side_yard_ft,omitempty"`
	PrincipalStreetSideYardFt  *float64 `json:"principal_street_side_yard_ft,omitempty"`
	PrincipalRearYardFt        *float64 `json:"principal_rear_yard_ft,omitempty"`
	PrincipalStreetRearYardFt  *float64 `json:"principal_street_rear_yard_ft,omitempty"`
	AccessoryFrontYardFt       *float64 `json:"accessory_front_yard_ft,omitempty"`
	AccessorySideYardFt        *float64 `json:"accessory_side_yard_ft,omitempty"`
	AccessoryStreetSideYardFt  *float64 `json:"accessory_street_side_yard_ft,omitempty"`
	AccessoryRearYardFt        *float64 `json:"accessory_rear_yard_ft,omitempty"`
	AccessoryStreetRearYardFt  *float64 `json:"accessory_street_rear_yard_ft,omitempty"`
	MaxBuildingCoveragePercent *float64 `json:"max_building_coverage_percent,omitempty"`
	MaxLotCoveragePercent      *float64 `json:"max_lot_coverage_percent,omitempty"`
	MaxHeightStories           *float64 `json:"max_height_stories,omitempty"`
	MaxHeightFeetTotal         *float64 `json:"max_height_feet_total,omitempty"`
	MinGrossFloorAreaFirstSqft *float64 `json:"min_gross_floor_area_first_floor_sqft,omitempty"`
	MinGrossFloorAreaMultiSqft *float64 `json:"min_gross_floor_area_multistory_sqft,omitempty"`
	MaxGrossFloorAreaAllSqft   *float64 `json:"max_gross_floor_area_all_structures_sqft,omitempty"`
	MaximumFAR                 *float64 `json:"maximum_far,omitempty"`
	MaximumDensityUnitsAcre    *float64 `json:"maximum_density_units_per_acre,omitempty"`
}

func (f *RequirementFields) slot(name NumericField) **float64 {
	switch name {
	case FieldInteriorMinLotAreaSqft:
		return &f.InteriorMinLotAreaSqft
	case FieldInteriorMinLotFrontageFt:
		return &f.InteriorMinLotFrontageFt
	case FieldInteriorMinLotWidthFt:
		return &f.InteriorMinLotWidthFt
	case FieldInteriorMinLotDepthFt:
		return &f.InteriorMinLotDepthFt
	case FieldCornerMinLotAreaSqft:
		return &f.CornerMinLotAreaSqft
	case FieldCornerMinLotFrontageFt:
		return &f.CornerMinLotFrontageFt
	case FieldCornerMinLotWidthFt:
		return &f.CornerMinLotWidthFt
	case FieldCornerMinLotDepthFt:
		return &f.CornerMinLotDepthFt
	case FieldMinCircleDiameterFt:
		return &f.MinCircleDiameterFt
	case FieldBuildableLotAreaSqft:
		return &f.BuildableLotAreaSqft
	case FieldPrincipalFrontYardFt:
		return &f.PrincipalFrontYardFt
	case FieldPrincipalSideYardFt:
		return &f.PrincipalSideYardFt
	case FieldPrincipalStreetSideYardFt:
		return &f.PrincipalStreetSideYardFt
	case FieldPrincipalRearYardFt:
		return &f.PrincipalRearYardFt
	case FieldPrincipalStreetRearYardFt:
		return &f.PrincipalStreetRearYardFt
	case FieldAccessoryFrontYardFt:
		return &f.AccessoryFrontYardFt
	case FieldAccessorySideYardFt:
		return &f.AccessorySideYardFt
	case FieldAccessoryStreetSideYardFt:
		return &f.AccessoryStreetSideYardFt
	case FieldAccessoryRearYardFt:
		return &f.AccessoryRearYardFt
	case FieldAccessoryStreetRearYardFt:
		return &f.AccessoryStreetRearYardFt
	case FieldMaxBuildingCoveragePercent:
		return &f.MaxBuildingCoveragePercent
	case FieldMaxLotCoveragePercent:
		return &f.MaxLotCoveragePercent
	case FieldMaxHeightStories:
		return &f.MaxHeightStories
	case FieldMaxHeightFeetTotal:
		return &f.MaxHeightFeetTotal
	case FieldMinGrossFloorAreaFirstSqft:
		return &f.MinGrossFloorAreaFirstSqft
	case FieldMinGrossFloorAreaMultiSqft:
		return &f.MinGrossFloorAreaMultiSqft
	case FieldMaxGrossFloorAreaAllSqft:
		return &f.MaxGrossFloorAreaAllSqft
	case FieldMaximumFAR:
		return &f.MaximumFAR
	case FieldMaximumDensityUnitsAcre:
		return &f.MaximumDensityUnitsAcre
	default:
		return nil
	}
}

// Numeric returns the value stored for the named field, or nil if the field
// is unset or unknown.
func (f *RequirementFields) Numeric(name NumericField) *float64 {
	s := f.slot(name)
	if s == nil {
		return nil
	}
	return *s
}

// SetNumeric stores v under the named field. Unknown names are ignored.
func (f *RequirementFields) SetNumeric(name NumericField, v *float64) {
	s := f.slot(name)
	if s == nil {
		return
	}
	*s = v
}

// NumericArgs returns every numeric value in storage order, for use as
// query arguments. Unset fields yield typed nils that bind as NULL.
func (f *RequirementFields) NumericArgs() []any {
	args := make([]any, len(NumericFields))
	for i, name := range NumericFields {
		args[i] = f.Numeric(name)
	}
	return args
}

// NumericScanDests returns addressable slots for every numeric field in
// storage order, for row scanning with drivers that understand **float64.
func (f *RequirementFields) NumericScanDests() []any {
	dests := make([]any, len(NumericFields))
	for i, name := range NumericFields {
		dests[i] = f.slot(name)
	}
	return dests
}

// ZoneRequirement is the canonical extracted record for one zoning district.
// Identity is (town, county, state, zone); re-extraction updates the row in
// place rather than duplicating it.
type ZoneRequirement struct {
	ID                   string  `json:"id"`
	JobID                string  `json:"job_id,omitempty"`
	Town                 string  `json:"town"`
	County               string  `json:"county"`
	State                string  `json:"state"`
	Zone                 string  `json:"zone"`
	DataSource           string  `json:"data_source"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	RequirementFields

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequirementKey is the composite identity of a persisted requirement.
type RequirementKey struct {
	Town   string
	County string
	State  string
	Zone   string
}

// Key returns the record's composite identity.
func (z *ZoneRequirement) Key() RequirementKey {
	return RequirementKey{Town: z.Town, County: z.County, State: z.State, Zone: z.Zone}
}

// Normalized lowercases and trims every component for case-insensitive
// dedupe comparisons. Stored values keep their original case.
func (k RequirementKey) Normalized() RequirementKey {
	return RequirementKey{
		Town:   strings.ToLower(strings.TrimSpace(k.Town)),
		County: strings.ToLower(strings.TrimSpace(k.County)),
		State:  strings.ToLower(strings.TrimSpace(k.State)),
		Zone:   strings.ToLower(strings.TrimSpace(k.Zone)),
	}
}
