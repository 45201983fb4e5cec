package web

import (
	"bytes"
	"net/http"
	"strconv"

	"diabetes-risk/internal/assess"
	"diabetes-risk/internal/features"
	"diabetes-risk/internal/present"

	"github.com/rs/zerolog/log"
)

// maxFormBytes bounds POST /predict bodies.
const maxFormBytes = 16 << 10

type fieldView struct {
	Name    string
	Label   string
	Value   string
	Help    string
	Range   string
	Step    string
	Invalid bool
}

type resultView struct {
	Headline   string
	Label      string
	Confidence float64
	Risk       float64
	Summary    string
	Positive   bool
}

type pageView struct {
	Title      string
	Intro      string
	Disclaimer string
	Fields     []fieldView
	Result     *resultView
	Error      string
	RequestID  string
}

func newPageView(values []string) pageView {
	specs := features.Contract()
	v := pageView{
		Title:      present.Title,
		Intro:      present.Intro,
		Disclaimer: present.Disclaimer,
		Fields:     make([]fieldView, len(specs)),
	}
	for i, f := range specs {
		fv := fieldView{
			Name:  f.Name,
			Label: f.Label,
			Help:  f.Help,
			Step:  strconv.FormatFloat(f.Step, 'f', -1, 64),
			Value: strconv.FormatFloat(f.Default, 'f', -1, 64),
		}
		if f.RangeChecked {
			fv.Range = f.RangeText()
		}
		if values != nil {
			fv.Value = values[i]
		}
		v.Fields[i] = fv
	}
	return v
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, newPageView(nil))
}

// handleFormPredict re-renders the form with the submitted values and either
// the result block or the error message.
func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	values := make(map[string]string, features.Count)
	for _, name := range features.Names() {
		values[name] = r.PostFormValue(name)
	}

	ctx := assess.WithSource(r.Context(), assess.SourceWeb)
	out := s.svc.AssessForm(ctx, values)

	view := newPageView(features.Ordered(values))
	view.RequestID = out.RequestID
	status := http.StatusOK

	if out.Err != nil {
		view.Error = out.Err.Display()
		if out.Err.Kind == assess.KindValidation {
			status = http.StatusUnprocessableEntity
			for i := range view.Fields {
				if view.Fields[i].Name == out.Err.Field {
					view.Fields[i].Invalid = true
				}
			}
		} else {
			status = http.StatusInternalServerError
		}
	} else {
		p := out.Presentation
		view.Result = &resultView{
			Headline:   p.Headline(),
			Label:      p.Label,
			Confidence: p.ConfidencePct,
			Risk:       p.RiskPct,
			Summary:    p.Summary(),
			Positive:   p.Positive,
		}
	}

	s.renderPage(w, status, view)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, view pageView) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, view); err != nil {
		log.Error().Err(err).Msg("Failed to render form")
		s.countError()
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

const formTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 720px; margin: 0 auto; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        h1 { margin-top: 0; }
        .field { display: flex; flex-direction: column; margin-bottom: 12px; }
        .field label { font-weight: 600; color: #333; }
        .field input { padding: 8px; border: 1px solid #ccc; border-radius: 4px; font-size: 1em; }
        .field input.invalid { border-color: #dc3545; background-color: #fff5f5; }
        .field small { color: #666; }
        .field .field-error { color: #dc3545; min-height: 1em; }
        button { background-color: #0d6efd; color: white; border: none; padding: 10px 24px; border-radius: 4px; font-size: 1em; cursor: pointer; }
        .result { padding: 15px; border-radius: 8px; margin-top: 15px; font-weight: bold; }
        .result-positive { background-color: #f8d7da; color: #842029; }
        .result-negative { background-color: #d1e7dd; color: #0f5132; }
        .error { background-color: #f8d7da; color: #842029; padding: 15px; border-radius: 8px; margin-top: 15px; }
        .caption { color: #666; font-size: 0.85em; }
    </style>
</head>
<body>
<div class="container">
    <div class="card">
        <h1>{{.Title}}</h1>
        <p>{{.Intro}}</p>
        <form method="POST" action="/predict" id="risk-form">
            {{range $i, $f := .Fields}}
            <div class="field">
                <label for="{{$f.Name}}">{{$f.Label}}</label>
                <input type="text" inputmode="decimal" id="{{$f.Name}}" name="{{$f.Name}}" value="{{$f.Value}}"
                       data-index="{{$i}}" data-step="{{$f.Step}}"{{if $f.Invalid}} class="invalid"{{end}}>
                <small>{{$f.Help}}{{if $f.Range}} (accepted: {{$f.Range}}){{end}}</small>
                <span class="field-error" id="{{$f.Name}}-error"></span>
            </div>
            {{end}}
            <button type="submit">Predict</button>
        </form>

        {{if .Result}}
        <div id="result">
            <h3>{{.Result.Headline}}</h3>
            <div class="result {{if .Result.Positive}}result-positive{{else}}result-negative{{end}}">{{.Result.Label}}</div>
            <p><strong>Confidence:</strong> {{pct .Result.Confidence}}<br>
               <strong>Diabetes Risk Probability:</strong> {{pct .Result.Risk}}</p>
        </div>
        {{end}}
        {{if .Error}}
        <div class="error" id="error">{{.Error}}</div>
        {{end}}
    </div>
    <hr>
    <p class="caption">{{.Disclaimer}}</p>
</div>

<script>
    (function() {
        const inputs = Array.from(document.querySelectorAll('#risk-form input'));
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        let ws;

        function connect() {
            ws = new WebSocket(scheme + location.host + '/ws/validate');
            ws.onmessage = function(event) {
                const data = JSON.parse(event.data);
                inputs.forEach(function(input) {
                    const bad = !data.valid && data.field === input.name;
                    input.classList.toggle('invalid', bad);
                    document.getElementById(input.name + '-error').textContent = bad ? data.message : '';
                });
            };
            ws.onclose = function() { setTimeout(connect, 5000); };
        }

        function send() {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            ws.send(JSON.stringify({ fields: inputs.map(function(i) { return i.value; }) }));
        }

        inputs.forEach(function(input) { input.addEventListener('input', send); });
        connect();
    })();
</script>
</body>
</html>
`
