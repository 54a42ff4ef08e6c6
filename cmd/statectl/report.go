package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/delaneyj/statetree/tracked"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
)

const maxCell = 40

func clip(s string) string {
	if len(s) <= maxCell {
		return s
	}
	return s[:maxCell-3] + "..."
}

func writeTable(w io.Writer, res *Result) error {
	fmt.Fprintf(w, "scenario %q: %s journal entries, edition %s\n",
		res.Name, humanize.Comma(int64(len(res.Entries))), humanize.Comma(res.Edition))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"seq", "label", "kind", "op", "path", "edition", "value", "previous", "message"})
	table.SetAutoWrapText(false)
	for _, e := range res.Entries {
		table.Append([]string{
			strconv.Itoa(e.Seq),
			e.Label,
			string(e.Kind),
			e.Op,
			e.Path,
			humanize.Comma(e.Edition),
			clip(e.Value),
			clip(e.Previous),
			e.Message,
		})
	}
	table.Render()

	if len(res.Renders) > 0 {
		renders := tablewriter.NewWriter(w)
		renders.SetHeader([]string{"watch", "renders"})
		for _, p := range sortedRenderPaths(res.Renders) {
			renders.Append([]string{p, humanize.Comma(int64(res.Renders[p]))})
		}
		renders.Render()
	}

	var snap bytes.Buffer
	if err := tracked.WriteJSON(&snap, res.Snapshot); err != nil {
		return err
	}
	fmt.Fprintf(w, "snapshot (%s): %s\n", humanize.Bytes(uint64(snap.Len())), snap.String())
	return nil
}

type jsonReport struct {
	Name     string          `json:"name"`
	Edition  int64           `json:"edition"`
	Journal  []jsonEntry     `json:"journal"`
	Renders  map[string]int  `json:"renders,omitempty"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type jsonEntry struct {
	Seq      int             `json:"seq"`
	Label    string          `json:"label,omitempty"`
	Kind     string          `json:"kind"`
	Op       string          `json:"op,omitempty"`
	Path     string          `json:"path,omitempty"`
	Edition  int64           `json:"edition"`
	Value    json.RawMessage `json:"value,omitempty"`
	Previous json.RawMessage `json:"previous,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func raw(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

func writeJSON(w io.Writer, res *Result) error {
	var snap bytes.Buffer
	if err := tracked.WriteJSON(&snap, res.Snapshot); err != nil {
		return err
	}
	out := jsonReport{
		Name:     res.Name,
		Edition:  res.Edition,
		Journal:  make([]jsonEntry, len(res.Entries)),
		Renders:  res.Renders,
		Snapshot: snap.Bytes(),
	}
	for i, e := range res.Entries {
		out.Journal[i] = jsonEntry{
			Seq:      e.Seq,
			Label:    e.Label,
			Kind:     string(e.Kind),
			Op:       e.Op,
			Path:     e.Path,
			Edition:  e.Edition,
			Value:    raw(e.Value),
			Previous: raw(e.Previous),
			Message:  e.Message,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"metric", "labels", "value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			table.Append([]string{mf.GetName(), strings.Join(labels, ","), humanize.Ftoa(v)})
		}
	}
	table.Render()
	return nil
}
