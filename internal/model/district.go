package model

import "time"

// District is one row of a municipality's published zoning-district
// inventory, imported from GIS shapefiles. Geometry is EWKB (SRID 4326) and
// may be nil when the source record had no usable shape.
type District struct {
	ID           string    `json:"id"`
	Municipality string    `json:"municipality"`
	State        string    `json:"state"`
	Code         string    `json:"code"`
	Name         string    `json:"name,omitempty"`
	Geometry     []byte    `json:"-"`
	SourceFile   string    `json:"source_file,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`
}
