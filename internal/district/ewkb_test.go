package district

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodeEWKB_Point(t *testing.T) {
	data, err := encodeEWKB(&shp.Point{X: -89.53, Y: 42.99})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)

	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, districtSRID, pt.SRID())
	assert.InDelta(t, -89.53, pt.X(), 1e-9)
	assert.InDelta(t, 42.99, pt.Y(), 1e-9)
}

func TestEncodeEWKB_Polygon(t *testing.T) {
	data, err := encodeEWKB(square(0, 0))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)

	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, districtSRID, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 5, mp.Polygon(0).LinearRing(0).NumCoords())
}

func TestEncodeEWKB_PolyLine(t *testing.T) {
	pl := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
		{{X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}},
	})

	data, err := encodeEWKB(pl)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)

	mls, ok := g.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, districtSRID, mls.SRID())
	assert.Equal(t, 2, mls.NumLineStrings())
	assert.Equal(t, 3, mls.LineString(1).NumCoords())
}

func TestEncodeEWKB_NilShape(t *testing.T) {
	data, err := encodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodeEWKB_UnsupportedShape(t *testing.T) {
	data, err := encodeEWKB(&shp.Null{})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodeEWKB_EmptyPolygon(t *testing.T) {
	data, err := encodeEWKB(&shp.Polygon{})
	require.NoError(t, err)
	assert.Nil(t, data)
}
