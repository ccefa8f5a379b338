package export

import (
	"html/template"
	"strings"

	"github.com/pkg/errors"
)

var tableTemplate = template.Must(template.New("table").Parse(
	`<table>{{range .}}<tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>{{end}}</table>`))

type cell struct {
	Name  string
	Value string
}

// HTMLTable renders the non-empty values as a two-column table, in the
// order of names. Used as placemark descriptions.
func HTMLTable(names []string, values map[string]string) (string, error) {
	var cells []cell
	for _, n := range names {
		v := strings.TrimSpace(values[n])
		if v == "" {
			continue
		}
		cells = append(cells, cell{Name: n, Value: v})
	}
	var b strings.Builder
	if err := tableTemplate.Execute(&b, cells); err != nil {
		return "", errors.Wrap(err, "failed to render table")
	}
	return b.String(), nil
}
