package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/dotsign/internal/config"
	"github.com/ggonzalez94/dotsign/internal/disclosure"
	"github.com/ggonzalez94/dotsign/internal/model"
)

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if settings.ResultsOnly {
			return enc.Encode(data)
		}
		env.Data = data
		return enc.Encode(env)
	}

	if env.Error != nil {
		_, err := fmt.Fprintf(w, "error %d (%s): %s\n", env.Error.Code, env.Error.Type, env.Error.Message)
		return err
	}
	if err := renderPlain(w, data); err != nil {
		return err
	}
	if settings.ResultsOnly {
		return nil
	}
	for _, warning := range env.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

func renderPlain(w io.Writer, data any) error {
	if rows, ok := data.([]model.DisclosureRow); ok {
		return renderRows(w, rows)
	}
	values := []any{asJSON(data)}
	if list, ok := values[0].([]any); ok && len(list) > 0 {
		values = list
	}
	for _, v := range values {
		line, err := plainLine(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// renderRows prints a disclosure the way a reviewer reads it: one
// "Label: value" line per row, headings bare.
func renderRows(w io.Writer, rows []model.DisclosureRow) error {
	for _, row := range rows {
		line := disclosure.Escape(row.Value)
		if row.Label != "" {
			line = disclosure.Escape(row.Label) + ": " + line
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// project keeps only the named top-level fields of an object or of every
// object in a list. Anything else passes through as generic JSON.
func project(data any, fields []string) any {
	generic := asJSON(data)
	pick := func(m map[string]any) map[string]any {
		kept := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := m[f]; ok {
				kept[f] = v
			}
		}
		return kept
	}
	if m, ok := generic.(map[string]any); ok {
		return pick(m)
	}
	list, ok := generic.([]any)
	if !ok {
		return generic
	}
	picked := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			picked = append(picked, pick(m))
		}
	}
	return picked
}

// asJSON converts v to the shape encoding/json would decode it into.
func asJSON(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := json.Unmarshal(buf, &generic); err != nil {
		return v
	}
	return generic
}

// plainLine renders one value: objects as sorted key=value pairs, anything
// else as compact JSON.
func plainLine(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		return string(buf), err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String(), nil
}
