package report

import (
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"github.com/dreamware/attest/internal/history"
)

// timelineSpan is one operation's bar on the timeline.
type timelineSpan struct {
	Label   string
	Class   string  // ok, fail, info, open
	Left    float64 // percent of run duration
	Width   float64
	Process int
}

type timelineKey struct {
	Key   int
	Spans []timelineSpan
}

type timelineData struct {
	Duration time.Duration
	Keys     []timelineKey
	Nemesis  []timelineSpan
}

var timelineTmpl = template.Must(template.New("timeline").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>run timeline</title>
<style>
  body { font-family: monospace; background: #fafafa; }
  .lane { position: relative; height: 22px; margin: 2px 0; background: #eee; }
  .lane .proc { position: absolute; left: -60px; width: 55px; text-align: right; }
  .op { position: absolute; height: 18px; top: 2px; border-radius: 2px; min-width: 2px; }
  .op.ok   { background: #7cb47c; }
  .op.fail { background: #c9c9c9; }
  .op.info { background: #e0b458; }
  .op.open { background: #d88; }
  .nemesis { position: absolute; height: 100%; background: rgba(200,60,60,0.15); }
  .keyblock { position: relative; margin: 24px 0 24px 70px; }
  h2 { margin-bottom: 4px; }
</style>
</head>
<body>
<h1>run timeline ({{.Duration}})</h1>
{{range .Keys}}
<div class="keyblock">
<h2>key {{.Key}}</h2>
{{range $n := $.Nemesis}}<div class="nemesis" style="left: {{printf "%.3f" $n.Left}}%; width: {{printf "%.3f" $n.Width}}%"></div>{{end}}
{{range .Spans}}
<div class="lane"><span class="proc">p{{.Process}}</span>
  <div class="op {{.Class}}" style="left: {{printf "%.3f" .Left}}%; width: {{printf "%.3f" .Width}}%" title="{{.Label}}"></div>
</div>
{{end}}
</div>
{{end}}
</body>
</html>
`))

// WriteTimeline renders the recorded history as a per-key HTML timeline:
// one lane per operation, shaded windows for nemesis partitions.
func WriteTimeline(path string, ops []history.Op) error {
	data := buildTimeline(ops)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return timelineTmpl.Execute(f, data)
}

func buildTimeline(ops []history.Op) timelineData {
	var end int64 = 1
	for _, op := range ops {
		if op.Time > end {
			end = op.Time
		}
	}
	data := timelineData{Duration: time.Duration(end)}
	pct := func(t int64) float64 { return float64(t) / float64(end) * 100 }

	// Client spans, one per completed (or dangling) operation
	pending := make(map[int]history.Op)
	spansByKey := make(map[int][]timelineSpan)
	var nemesisStart int64 = -1

	for _, op := range ops {
		if op.Process == history.NemesisProcess {
			// Shade from partition start to the matching stop
			switch {
			case op.Func == history.FuncStartPartition && op.Type == history.Invoke:
				nemesisStart = op.Time
			case op.Func == history.FuncStopPartition && op.Type != history.Invoke && nemesisStart >= 0:
				data.Nemesis = append(data.Nemesis, timelineSpan{
					Class: "nemesis",
					Left:  pct(nemesisStart),
					Width: pct(op.Time) - pct(nemesisStart),
				})
				nemesisStart = -1
			}
			continue
		}
		if op.Type == history.Invoke {
			pending[op.Process] = op
			continue
		}
		inv, ok := pending[op.Process]
		if !ok {
			continue
		}
		delete(pending, op.Process)
		spansByKey[op.Key] = append(spansByKey[op.Key], timelineSpan{
			Label:   describeOp(op),
			Class:   string(op.Type),
			Left:    pct(inv.Time),
			Width:   pct(op.Time) - pct(inv.Time),
			Process: op.Process,
		})
	}
	// A partition still open at the end of the history
	if nemesisStart >= 0 {
		data.Nemesis = append(data.Nemesis, timelineSpan{
			Class: "nemesis",
			Left:  pct(nemesisStart),
			Width: 100 - pct(nemesisStart),
		})
	}
	// Operations whose worker never completed
	for _, inv := range pending {
		spansByKey[inv.Key] = append(spansByKey[inv.Key], timelineSpan{
			Label:   fmt.Sprintf("process %d %s key %d (no completion)", inv.Process, inv.Func, inv.Key),
			Class:   "open",
			Left:    pct(inv.Time),
			Width:   100 - pct(inv.Time),
			Process: inv.Process,
		})
	}

	keys := make([]int, 0, len(spansByKey))
	for k := range spansByKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		data.Keys = append(data.Keys, timelineKey{Key: k, Spans: spansByKey[k]})
	}
	return data
}
