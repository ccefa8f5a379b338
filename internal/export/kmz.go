package export

import (
	"archive/zip"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/twpayne/go-kml"
)

// Properties read by the KMZ writer.
const (
	NameProperty        = "name"
	DescriptionProperty = "description"
	IconProperty        = "icon_path"
)

func coordinates(points ...orb.Point) *kml.CoordinatesElement {
	cs := make([]kml.Coordinate, len(points))
	for i, p := range points {
		cs[i] = kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
	}
	return kml.Coordinates(cs...)
}

func stringProperty(f *geojson.Feature, name string) string {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// placemark converts one feature. Geometries other than Point, LineString
// and Polygon are skipped.
func placemark(f *geojson.Feature) (kml.Element, bool) {
	name := stringProperty(f, NameProperty)
	switch g := f.Geometry.(type) {
	case orb.Point:
		pm := kml.Placemark(kml.Name(name), kml.Description(stringProperty(f, DescriptionProperty)))
		if icon := stringProperty(f, IconProperty); icon != "" {
			pm.Add(kml.Style(
				kml.IconStyle(
					kml.Color(color.White),
					kml.Icon(kml.Href(filepath.Base(icon))),
				),
				kml.LabelStyle(kml.Scale(0)),
			))
		}
		return pm.Add(kml.Point(coordinates(g))), true
	case orb.LineString:
		if name == "" {
			name = "No Name"
		}
		return kml.Placemark(kml.Name(name), kml.LineString(coordinates(g...))), true
	case orb.Polygon:
		if name == "" {
			name = "No Name"
		}
		if len(g) == 0 {
			return nil, false
		}
		return kml.Placemark(
			kml.Name(name),
			kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(coordinates(g[0]...)))),
		), true
	}
	return nil, false
}

// EncodeKML writes fc as a KML document named name.
func EncodeKML(w io.Writer, name string, fc *geojson.FeatureCollection) error {
	doc := kml.Document(kml.Name(name))
	for _, f := range fc.Features {
		if pm, ok := placemark(f); ok {
			doc.Add(pm)
		}
	}
	if err := kml.KML(doc).WriteIndent(w, "", "  "); err != nil {
		return errors.Wrap(err, "failed to encode kml")
	}
	return nil
}

// WriteKMZ writes a content pack: the KML document plus every distinct
// icon referenced by the features. Icon paths are resolved against
// iconRoot.
func WriteKMZ(path, iconRoot string, fc *geojson.FeatureCollection) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	zw := zip.NewWriter(out)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	kw, err := zw.Create(base + ".kml")
	if err != nil {
		return errors.Wrap(err, "failed to add kml to archive")
	}
	if err := EncodeKML(kw, base, fc); err != nil {
		return err
	}

	icons := make(map[string]bool)
	for _, f := range fc.Features {
		if icon := stringProperty(f, IconProperty); icon != "" {
			icons[icon] = true
		}
	}
	names := make([]string, 0, len(icons))
	for icon := range icons {
		names = append(names, icon)
	}
	sort.Strings(names)
	for _, icon := range names {
		if err := addFile(zw, filepath.Join(iconRoot, icon), filepath.Base(icon)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "failed to finish %s", path)
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open icon %s", src)
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "failed to add %s to archive", name)
	}
	if _, err := io.Copy(w, f); err != nil {
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	return nil
}
