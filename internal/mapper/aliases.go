package mapper

import "github.com/sells-group/zoning-cli/internal/model"

// subObjectAliases maps canonical sub-object names to the keys they appear
// under in raw zone records.
var subObjectAliases = map[string][]string{
	"interior_lots":            {"interior_lots", "interior_lot", "interior"},
	"corner_lots":              {"corner_lots", "corner_lot", "corner"},
	"lot_requirements":         {"lot_requirements", "lot_standards"},
	"principal_building_yards": {"principal_building_yards", "principal_yards", "principal_building_setbacks", "principal_setbacks"},
	"accessory_building_yards": {"accessory_building_yards", "accessory_yards", "accessory_building_setbacks", "accessory_setbacks"},
	"coverage_and_height":      {"coverage_and_height", "coverage", "height_and_coverage"},
	"floor_area":               {"floor_area", "floor_areas"},
	"development_intensity":    {"development_intensity", "intensity", "density"},
}

// defaultSpecs returns the built-in alias table. Order matters: fallback
// sources (frontage, width, principal yards) come before the fields that
// chain onto them.
func defaultSpecs() []Spec {
	return []Spec{
		{
			Field: model.FieldInteriorMinLotAreaSqft,
			Lookups: []Lookup{
				{Sub: "interior_lots", Key: "min_lot_area_sqft"},
				{Sub: "interior_lots", Key: "lot_area_sqft"},
				{Sub: "lot_requirements", Key: "min_lot_area_sqft"},
				{Key: "interior_min_lot_area_sqft"},
				{Key: "min_lot_area_sqft"},
				{Key: "lot_area_sqft"},
				{Key: "lot_area"},
				{Key: "minimum_lot_area"},
			},
		},
		{
			Field: model.FieldInteriorMinLotFrontageFt,
			Lookups: []Lookup{
				{Sub: "interior_lots", Key: "min_lot_frontage_ft"},
				{Sub: "interior_lots", Key: "lot_frontage_ft"},
				{Sub: "lot_requirements", Key: "min_lot_frontage_ft"},
				{Key: "interior_min_lot_frontage_ft"},
				{Key: "min_lot_frontage_ft"},
				{Key: "lot_frontage_ft"},
				{Key: "lot_frontage"},
				{Key: "frontage"},
			},
		},
		{
			Field: model.FieldInteriorMinLotWidthFt,
			Lookups: []Lookup{
				{Sub: "interior_lots", Key: "min_lot_width_ft"},
				{Sub: "interior_lots", Key: "lot_width_ft"},
				{Sub: "lot_requirements", Key: "min_lot_width_ft"},
				{Key: "interior_min_lot_width_ft"},
				{Key: "min_lot_width_ft"},
				{Key: "lot_width_ft"},
				{Key: "lot_width"},
			},
			FallbackTo: model.FieldInteriorMinLotFrontageFt,
		},
		{
			Field: model.FieldInteriorMinLotDepthFt,
			Lookups: []Lookup{
				{Sub: "interior_lots", Key: "min_lot_depth_ft"},
				{Sub: "interior_lots", Key: "lot_depth_ft"},
				{Sub: "lot_requirements", Key: "min_lot_depth_ft"},
				{Key: "interior_min_lot_depth_ft"},
				{Key: "min_lot_depth_ft"},
				{Key: "lot_depth_ft"},
				{Key: "lot_depth"},
			},
			FallbackTo: model.FieldInteriorMinLotWidthFt,
		},
		{
			Field: model.FieldCornerMinLotAreaSqft,
			Lookups: []Lookup{
				{Sub: "corner_lots", Key: "min_lot_area_sqft"},
				{Sub: "corner_lots", Key: "lot_area_sqft"},
				{Key: "corner_min_lot_area_sqft"},
				{Key: "corner_lot_area_sqft"},
			},
		},
		{
			Field: model.FieldCornerMinLotFrontageFt,
			Lookups: []Lookup{
				{Sub: "corner_lots", Key: "min_lot_frontage_ft"},
				{Sub: "corner_lots", Key: "lot_frontage_ft"},
				{Key: "corner_min_lot_frontage_ft"},
				{Key: "corner_lot_frontage_ft"},
			},
		},
		{
			Field: model.FieldCornerMinLotWidthFt,
			Lookups: []Lookup{
				{Sub: "corner_lots", Key: "min_lot_width_ft"},
				{Sub: "corner_lots", Key: "lot_width_ft"},
				{Key: "corner_min_lot_width_ft"},
				{Key: "corner_lot_width_ft"},
			},
			FallbackTo: model.FieldCornerMinLotFrontageFt,
		},
		{
			Field: model.FieldCornerMinLotDepthFt,
			Lookups: []Lookup{
				{Sub: "corner_lots", Key: "min_lot_depth_ft"},
				{Sub: "corner_lots", Key: "lot_depth_ft"},
				{Key: "corner_min_lot_depth_ft"},
				{Key: "corner_lot_depth_ft"},
			},
			FallbackTo: model.FieldCornerMinLotWidthFt,
		},
		{
			Field: model.FieldMinCircleDiameterFt,
			Lookups: []Lookup{
				{Sub: "lot_requirements", Key: "min_circle_diameter_ft"},
				{Sub: "interior_lots", Key: "min_circle_diameter_ft"},
				{Key: "min_circle_diameter_ft"},
				{Key: "circle_diameter_ft"},
			},
		},
		{
			Field: model.FieldBuildableLotAreaSqft,
			Lookups: []Lookup{
				{Sub: "lot_requirements", Key: "buildable_lot_area_sqft"},
				{Sub: "lot_requirements", Key: "buildable_area_sqft"},
				{Key: "buildable_lot_area_sqft"},
				{Key: "buildable_area_sqft"},
			},
		},
		{
			Field: model.FieldPrincipalFrontYardFt,
			Lookups: []Lookup{
				{Sub: "principal_building_yards", Key: "front_yard_ft"},
				{Sub: "principal_building_yards", Key: "min_front_yard_ft"},
				{Sub: "principal_building_yards", Key: "front_setback_ft"},
				{Key: "principal_front_yard_ft"},
				{Key: "principal_min_front_yard_ft"},
				{Key: "front_yard_ft"},
				{Key: "front_setback_ft"},
				{Key: "min_front_yard_ft"},
			},
		},
		{
			Field: model.FieldPrincipalSideYardFt,
			Lookups: []Lookup{
				{Sub: "principal_building_yards", Key: "side_yard_ft"},
				{Sub: "principal_building_yards", Key: "min_side_yard_ft"},
				{Sub: "principal_building_yards", Key: "side_setback_ft"},
				{Key: "principal_side_yard_ft"},
				{Key: "principal_min_side_yard_ft"},
				{Key: "side_yard_ft"},
				{Key: "side_setback_ft"},
				{Key: "min_side_yard_ft"},
			},
		},
		{
			Field: model.FieldPrincipalStreetSideYardFt,
			Lookups: []Lookup{
				{Sub: "principal_building_yards", Key: "street_side_yard_ft"},
				{Sub: "principal_building_yards", Key: "min_street_side_yard_ft"},
				{Key: "principal_street_side_yard_ft"},
				{Key: "street_side_yard_ft"},
				{Key: "corner_side_yard_ft"},
			},
		},
		{
			Field: model.FieldPrincipalRearYardFt,
			Lookups: []Lookup{
				{Sub: "principal_building_yards", Key: "rear_yard_ft"},
				{Sub: "principal_building_yards", Key: "min_rear_yard_ft"},
				{Sub: "principal_building_yards", Key: "rear_setback_ft"},
				{Key: "principal_rear_yard_ft"},
				{Key: "principal_min_rear_yard_ft"},
				{Key: "rear_yard_ft"},
				{Key: "rear_setback_ft"},
				{Key: "min_rear_yard_ft"},
			},
		},
		{
			Field: model.FieldPrincipalStreetRearYardFt,
			Lookups: []Lookup{
				{Sub: "principal_building_yards", Key: "street_rear_yard_ft"},
				{Sub: "principal_building_yards", Key: "min_street_rear_yard_ft"},
				{Key: "principal_street_rear_yard_ft"},
				{Key: "street_rear_yard_ft"},
			},
		},
		{
			Field: model.FieldAccessoryFrontYardFt,
			Lookups: []Lookup{
				{Sub: "accessory_building_yards", Key: "front_yard_ft"},
				{Sub: "accessory_building_yards", Key: "min_front_yard_ft"},
				{Key: "accessory_front_yard_ft"},
				{Key: "accessory_min_front_yard_ft"},
			},
			FallbackTo: model.FieldPrincipalFrontYardFt,
		},
		{
			Field: model.FieldAccessorySideYardFt,
			Lookups: []Lookup{
				{Sub: "accessory_building_yards", Key: "side_yard_ft"},
				{Sub: "accessory_building_yards", Key: "min_side_yard_ft"},
				{Key: "accessory_side_yard_ft"},
				{Key: "accessory_min_side_yard_ft"},
			},
			FallbackTo: model.FieldPrincipalSideYardFt,
		},
		{
			Field: model.FieldAccessoryStreetSideYardFt,
			Lookups: []Lookup{
				{Sub: "accessory_building_yards", Key: "street_side_yard_ft"},
				{Sub: "accessory_building_yards", Key: "min_street_side_yard_ft"},
				{Key: "accessory_street_side_yard_ft"},
			},
		},
		{
			Field: model.FieldAccessoryRearYardFt,
			Lookups: []Lookup{
				{Sub: "accessory_building_yards", Key: "rear_yard_ft"},
				{Sub: "accessory_building_yards", Key: "min_rear_yard_ft"},
				{Key: "accessory_rear_yard_ft"},
				{Key: "accessory_min_rear_yard_ft"},
			},
			FallbackTo: model.FieldPrincipalRearYardFt,
		},
		{
			Field: model.FieldAccessoryStreetRearYardFt,
			Lookups: []Lookup{
				{Sub: "accessory_building_yards", Key: "street_rear_yard_ft"},
				{Sub: "accessory_building_yards", Key: "min_street_rear_yard_ft"},
				{Key: "accessory_street_rear_yard_ft"},
			},
		},
		{
			Field: model.FieldMaxBuildingCoveragePercent,
			Lookups: []Lookup{
				{Sub: "coverage_and_height", Key: "max_building_coverage_percent"},
				{Sub: "coverage_and_height", Key: "building_coverage_percent"},
				{Key: "max_building_coverage_percent"},
				{Key: "building_coverage_percent"},
				{Key: "max_building_coverage"},
			},
		},
		{
			Field: model.FieldMaxLotCoveragePercent,
			Lookups: []Lookup{
				{Sub: "coverage_and_height", Key: "max_lot_coverage_percent"},
				{Sub: "coverage_and_height", Key: "lot_coverage_percent"},
				{Sub: "coverage_and_height", Key: "impervious_coverage_percent"},
				{Key: "max_lot_coverage_percent"},
				{Key: "lot_coverage_percent"},
				{Key: "impervious_coverage_percent"},
				{Key: "max_lot_coverage"},
			},
		},
		{
			Field: model.FieldMaxHeightStories,
			Lookups: []Lookup{
				{Sub: "coverage_and_height", Key: "max_height_stories"},
				{Sub: "coverage_and_height", Key: "max_stories"},
				{Sub: "coverage_and_height", Key: "height_stories"},
				{Key: "max_height_stories"},
				{Key: "principal_max_height_stories"},
				{Key: "max_stories"},
			},
			Integer: true,
		},
		{
			Field: model.FieldMaxHeightFeetTotal,
			Lookups: []Lookup{
				{Sub: "coverage_and_height", Key: "max_height_feet"},
				{Sub: "coverage_and_height", Key: "max_height_ft"},
				{Sub: "coverage_and_height", Key: "height_feet"},
				{Key: "max_height_feet_total"},
				{Key: "principal_max_height_feet"},
				{Key: "max_height_feet"},
				{Key: "max_height_ft"},
			},
		},
		{
			Field: model.FieldMinGrossFloorAreaFirstSqft,
			Lookups: []Lookup{
				{Sub: "floor_area", Key: "min_gross_floor_area_first_floor_sqft"},
				{Sub: "floor_area", Key: "first_floor_min_sqft"},
				{Key: "min_gross_floor_area_first_floor_sqft"},
				{Key: "min_first_floor_area_sqft"},
			},
		},
		{
			Field: model.FieldMinGrossFloorAreaMultiSqft,
			Lookups: []Lookup{
				{Sub: "floor_area", Key: "min_gross_floor_area_multistory_sqft"},
				{Sub: "floor_area", Key: "multistory_min_sqft"},
				{Key: "min_gross_floor_area_multistory_sqft"},
			},
		},
		{
			Field: model.FieldMaxGrossFloorAreaAllSqft,
			Lookups: []Lookup{
				{Sub: "floor_area", Key: "max_gross_floor_area_all_structures_sqft"},
				{Sub: "floor_area", Key: "max_gross_floor_area_sqft"},
				{Key: "max_gross_floor_area_all_structures_sqft"},
				{Key: "max_gross_floor_area_sqft"},
			},
		},
		{
			Field: model.FieldMaximumFAR,
			Lookups: []Lookup{
				{Sub: "development_intensity", Key: "maximum_far"},
				{Sub: "development_intensity", Key: "max_far"},
				{Sub: "development_intensity", Key: "far"},
				{Key: "maximum_far"},
				{Key: "max_far"},
				{Key: "floor_area_ratio"},
			},
		},
		{
			Field: model.FieldMaximumDensityUnitsAcre,
			Lookups: []Lookup{
				{Sub: "development_intensity", Key: "maximum_density_units_per_acre"},
				{Sub: "development_intensity", Key: "max_density_units_per_acre"},
				{Sub: "development_intensity", Key: "units_per_acre"},
				{Key: "maximum_density_units_per_acre"},
				{Key: "max_density_units_per_acre"},
				{Key: "density_units_per_acre"},
			},
		},
	}
}

// zoneNameKeys are tried in order when pulling the zone identifier off a raw
// record.
var zoneNameKeys = []string{"zone", "zone_name", "district", "district_name", "name"}

// confidenceKeys are tried in order for a per-zone confidence override.
var confidenceKeys = []string{"extraction_confidence", "confidence"}
