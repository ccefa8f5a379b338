package export

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

const (
	gpkgApplicationID = 1196444487 // "GPKG"
	gpkgUserVersion   = 10300

	// WGS84 is the SRS of every layer.
	WGS84 = 4326

	geometryColumn = "geom"
	fidColumn      = "fid"
)

var gpkgSchema = []string{
	`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE,
		min_y DOUBLE,
		max_x DOUBLE,
		max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`INSERT OR IGNORE INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system'),
		('WGS 84 geodetic', 4326, 'EPSG', 4326, 'GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]', 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
}

// GeoPackage is an open .gpkg file.
type GeoPackage struct {
	db   *sql.DB
	path string
}

// OpenGeoPackage opens or creates the GeoPackage at path.
func OpenGeoPackage(path string) (*GeoPackage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	// One connection: PRAGMAs and transactions must see the same handle.
	db.SetMaxOpenConns(1)

	stmts := append([]string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	}, gpkgSchema...)
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to initialise %s", path)
		}
	}
	return &GeoPackage{db: db, path: path}, nil
}

// Close closes the underlying database.
func (g *GeoPackage) Close() error {
	return g.db.Close()
}

// DB exposes the database for inspection.
func (g *GeoPackage) DB() *sql.DB {
	return g.db
}

// WriteLayer stores fc as a feature table named layer, replacing the layer
// when it already exists. Properties become TEXT columns.
func (g *GeoPackage) WriteLayer(layer string, fc *geojson.FeatureCollection) (err error) {
	columns := propertyColumns(fc)

	tx, err := g.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, q := range []string{
		"DELETE FROM gpkg_geometry_columns WHERE table_name = ?",
		"DELETE FROM gpkg_contents WHERE table_name = ?",
	} {
		if _, err = tx.Exec(q, layer); err != nil {
			return errors.Wrapf(err, "failed to unregister layer %s", layer)
		}
	}
	if _, err = tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(layer)); err != nil {
		return errors.Wrapf(err, "failed to drop layer %s", layer)
	}

	defs := []string{
		quoteIdent(fidColumn) + " INTEGER PRIMARY KEY AUTOINCREMENT",
		quoteIdent(geometryColumn) + " " + geometryTypeName(fc),
	}
	for _, c := range columns {
		defs = append(defs, quoteIdent(c.name)+" TEXT")
	}
	if _, err = tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(layer), strings.Join(defs, ", "))); err != nil {
		return errors.Wrapf(err, "failed to create layer %s", layer)
	}

	names := []string{quoteIdent(geometryColumn)}
	marks := []string{"?"}
	for _, c := range columns {
		names = append(names, quoteIdent(c.name))
		marks = append(marks, "?")
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(layer), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return errors.Wrapf(err, "failed to prepare insert into %s", layer)
	}
	defer stmt.Close()

	var (
		bound    orb.Bound
		hasBound bool
	)
	for i, f := range fc.Features {
		blob, encErr := EncodeGeometry(f.Geometry, WGS84)
		if encErr != nil {
			err = errors.Wrapf(encErr, "feature %d", i)
			return err
		}
		if f.Geometry != nil {
			if hasBound {
				bound = bound.Union(f.Geometry.Bound())
			} else {
				bound, hasBound = f.Geometry.Bound(), true
			}
		}
		args := []interface{}{blob}
		for _, c := range columns {
			args = append(args, propertyValue(f.Properties[c.property]))
		}
		if _, err = stmt.Exec(args...); err != nil {
			return errors.Wrapf(err, "failed to insert feature %d into %s", i, layer)
		}
	}

	if _, err = tx.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		layer, layer, bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y(), WGS84,
	); err != nil {
		return errors.Wrapf(err, "failed to register layer %s", layer)
	}
	if _, err = tx.Exec(
		`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		 VALUES (?, ?, ?, ?, 0, 0)`,
		layer, geometryColumn, geometryTypeName(fc), WGS84,
	); err != nil {
		return errors.Wrapf(err, "failed to register geometry column of %s", layer)
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit layer %s", layer)
	}
	return nil
}

// WriteLayerFile opens path, writes one layer and closes it again.
func WriteLayerFile(path, layer string, fc *geojson.FeatureCollection) error {
	g, err := OpenGeoPackage(path)
	if err != nil {
		return err
	}
	if err := g.WriteLayer(layer, fc); err != nil {
		g.Close()
		return err
	}
	return g.Close()
}

type column struct {
	property string
	name     string
}

// propertyColumns returns the union of property names, sorted. Names that
// clash with the reserved columns get a leading underscore.
func propertyColumns(fc *geojson.FeatureCollection) []column {
	seen := make(map[string]bool)
	var props []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				props = append(props, k)
			}
		}
	}
	sort.Strings(props)

	used := map[string]bool{fidColumn: true, geometryColumn: true}
	out := make([]column, 0, len(props))
	for _, p := range props {
		name := p
		for used[strings.ToLower(name)] {
			name = "_" + name
		}
		used[strings.ToLower(name)] = true
		out = append(out, column{property: p, name: name})
	}
	return out
}

func propertyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// geometryTypeName is the common type of the features, or GEOMETRY when
// they differ.
func geometryTypeName(fc *geojson.FeatureCollection) string {
	name := ""
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		t := strings.ToUpper(f.Geometry.GeoJSONType())
		if name == "" {
			name = t
		} else if name != t {
			return "GEOMETRY"
		}
	}
	if name == "" {
		return "GEOMETRY"
	}
	return name
}

// EncodeGeometry renders g as a GeoPackage geometry blob: the "GP" header
// with an XY envelope followed by little-endian WKB. A nil geometry encodes
// as nil.
func EncodeGeometry(g orb.Geometry, srsID int32) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Write([]byte{'G', 'P', 0})
	// little-endian, envelope [minx, maxx, miny, maxy]
	buf.WriteByte(0x01 | 0x01<<1)
	if err := binary.Write(&buf, binary.LittleEndian, srsID); err != nil {
		return nil, err
	}
	b := g.Bound()
	for _, v := range []float64{b.Min.X(), b.Max.X(), b.Min.Y(), b.Max.Y()} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode wkb")
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
