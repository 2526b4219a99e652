package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"forest-cover/internal/features"
	"forest-cover/internal/ml"

	"github.com/rs/zerolog/log"
)

type fieldView struct {
	features.Domain
	Value float64
}

type option struct {
	Value    int
	Text     string
	Selected bool
}

type pageData struct {
	State        ml.LoadState
	LoadError    string
	ModelVersion string
	Disabled     bool
	Fields       []fieldView
	Wilderness   []option
	Soil         []option
	Result       *ml.Prediction
	Error        string
	RequestID    string
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, features.DefaultObservation(), nil, nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	obs, err := parseObservation(r)
	if err != nil {
		s.render(w, r, statusFor(err), obs, nil, err)
		return
	}

	pred, err := s.gateway.Predict(r.Context(), obs)
	if err != nil {
		s.render(w, r, statusFor(err), obs, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, obs, &pred, nil)
}

// render writes the page. A failed model load overrides status with 503.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, obs features.RawObservation, pred *ml.Prediction, err error) {
	data := pageData{
		State:      s.gateway.State(),
		Fields:     fieldViews(obs),
		Wilderness: categoryOptions(features.WildernessAreas, int(obs.Wilderness), "Wilderness area"),
		Soil:       categoryOptions(features.SoilTypes, int(obs.Soil), "Soil type"),
		Result:     pred,
		RequestID:  ml.RequestIDFromContext(r.Context()),
	}
	if loadErr := s.gateway.Err(); loadErr != nil {
		data.LoadError = loadErr.Error()
		data.Disabled = true
		status = http.StatusServiceUnavailable
	} else if err != nil {
		data.Error = err.Error()
	}
	if md, ok := s.gateway.Metadata(); ok {
		data.ModelVersion = md.Version
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}

// parseObservation reads the form. Missing fields keep their defaults; the
// returned observation is not validated.
func parseObservation(r *http.Request) (features.RawObservation, error) {
	obs := features.DefaultObservation()
	if err := r.ParseForm(); err != nil {
		return obs, fmt.Errorf("invalid form: %w", err)
	}

	for _, d := range features.Domains {
		raw := strings.TrimSpace(r.PostForm.Get(d.Key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return obs, features.ParseError(d.Key, raw, "is not a number")
		}
		if err := obs.Set(d.Key, v); err != nil {
			return obs, err
		}
	}

	wa, err := formInt(r, "wilderness_area")
	if err != nil {
		return obs, err
	}
	obs.Wilderness = features.WildernessArea(wa)

	st, err := formInt(r, "soil_type")
	if err != nil {
		return obs, err
	}
	obs.Soil = features.SoilType(st)
	return obs, nil
}

func formInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.PostForm.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, features.ParseError(key, raw, "is not a whole number")
	}
	return v, nil
}

func fieldViews(obs features.RawObservation) []fieldView {
	values := obs.Continuous()
	out := make([]fieldView, len(features.Domains))
	for i, d := range features.Domains {
		out[i] = fieldView{Domain: d, Value: values[i]}
	}
	return out
}

// categoryOptions lists "none" followed by 1..n.
func categoryOptions(n, selected int, prefix string) []option {
	out := make([]option, 0, n+1)
	out = append(out, option{Value: 0, Text: "None", Selected: selected == 0})
	for i := 1; i <= n; i++ {
		out = append(out, option{Value: i, Text: fmt.Sprintf("%s %d", prefix, i), Selected: selected == i})
	}
	return out
}

var pageFuncs = template.FuncMap{
	"num": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>Forest Cover Type Prediction</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    {{if eq .State "pending"}}<meta http-equiv="refresh" content="3">{{end}}
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 900px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #2f6f3e 0%, #5a8f3c 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; text-align: center; }
        .banner { padding: 12px 15px; border-radius: 8px; margin-bottom: 20px; font-weight: bold; }
        .banner-ok { background-color: #d4edda; color: #155724; }
        .banner-pending { background-color: #fff3cd; color: #856404; }
        .banner-error { background-color: #f8d7da; color: #721c24; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        .field { display: grid; grid-template-columns: 1fr 2fr 80px; align-items: center; gap: 10px; padding: 6px 0; }
        .result { font-size: 1.5em; text-align: center; }
        button { padding: 10px 25px; border: none; border-radius: 6px; background: #2f6f3e; color: white; font-size: 1em; }
        button:disabled { background: #999; }
    </style>
</head>
<body>
<div class="container">
    <div class="header"><h1>Forest Cover Type Prediction</h1></div>

    {{if .LoadError}}
    <div class="banner banner-error" id="status">Model could not be retrieved: {{.LoadError}}</div>
    {{else if eq .State "ready"}}
    <div class="banner banner-ok" id="status">Model loaded{{if .ModelVersion}} ({{.ModelVersion}}){{end}}</div>
    {{else}}
    <div class="banner banner-pending" id="status">Model is loading...</div>
    {{end}}

    {{if .Error}}<div class="banner banner-error" id="error">{{.Error}}</div>{{end}}

    {{with .Result}}
    <div class="card result" id="result">Predicted cover type: <strong>{{.Label}}</strong> (class {{.Code}})</div>
    {{end}}

    <form class="card" method="POST" action="/">
        <fieldset {{if .Disabled}}disabled{{end}} style="border: none; padding: 0;">
        {{range .Fields}}
        <div class="field">
            <label for="{{.Key}}">{{.Label}}</label>
            <input type="range" id="{{.Key}}" name="{{.Key}}" min="{{num .Min}}" max="{{num .Max}}" step="{{num .Step}}" value="{{num .Value}}"
                   oninput="this.nextElementSibling.value = this.value; live()">
            <output>{{num .Value}}</output>
        </div>
        {{end}}
        <div class="field">
            <label for="wilderness_area">Wilderness area</label>
            <select id="wilderness_area" name="wilderness_area" onchange="live()">
                {{range .Wilderness}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Text}}</option>{{end}}
            </select>
            <span></span>
        </div>
        <div class="field">
            <label for="soil_type">Soil type</label>
            <select id="soil_type" name="soil_type" onchange="live()">
                {{range .Soil}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Text}}</option>{{end}}
            </select>
            <span></span>
        </div>
        <p><button type="submit">Predict</button> <span id="live"></span></p>
        </fieldset>
    </form>
</div>
<script>
    let ws = null;
    {{if not .Disabled}}
    try {
        ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onmessage = function(event) {
            const msg = JSON.parse(event.data);
            const out = document.getElementById('live');
            if (msg.type === 'prediction') {
                out.textContent = 'Live: ' + msg.label;
            } else if (msg.type === 'error') {
                out.textContent = 'Live: ' + msg.error;
            }
        };
    } catch (e) {
        ws = null;
    }
    {{end}}

    function live() {
        if (!ws || ws.readyState !== WebSocket.OPEN) {
            return;
        }
        const obs = {};
        document.querySelectorAll('input[type=range]').forEach(function(el) {
            obs[el.name] = parseFloat(el.value);
        });
        obs.wilderness_area = parseInt(document.getElementById('wilderness_area').value, 10);
        obs.soil_type = parseInt(document.getElementById('soil_type').value, 10);
        ws.send(JSON.stringify(obs));
    }
</script>
</body>
</html>
`
