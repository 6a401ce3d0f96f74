package webui

import (
	"html/template"
	"io"

	"crowdview/render"
)

// fallbackPageHTML replaces the whole dashboard after a render failure.
// CSS is inline so the page does not depend on any other asset.
const fallbackPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>crowdview</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #111827;
            color: #f9fafb;
        }

        .error-boundary {
            background: rgba(255, 255, 255, 0.05);
            border: 1px solid rgba(255, 99, 132, 0.4);
            border-radius: 12px;
            padding: 40px;
            max-width: 480px;
            text-align: center;
        }

        .error-boundary h2 { font-size: 22px; font-weight: 600; margin-bottom: 16px; }

        .error-boundary pre {
            font-size: 12px;
            color: #9ca3af;
            white-space: pre-wrap;
            margin-bottom: 24px;
        }

        .error-boundary button {
            background: #ff6384;
            color: #fff;
            border: none;
            border-radius: 8px;
            padding: 10px 24px;
            font-size: 15px;
            cursor: pointer;
        }

        .error-boundary button:disabled { opacity: 0.6; cursor: wait; }
    </style>
</head>
<body>
    <div class="error-boundary">
        <h2>{{.Message}}</h2>
        {{if .Error}}<pre>{{.Error}}</pre>{{end}}
        <button id="reload" type="button">Reload</button>
    </div>
    <script>
        document.getElementById('reload').addEventListener('click', function (ev) {
            ev.target.disabled = true;
            fetch('/api/reload', { method: 'POST' }).finally(function () {
                window.location.assign('/dashboard');
            });
        });
    </script>
</body>
</html>`

var fallbackTemplate = template.Must(template.New("fallback").Parse(fallbackPageHTML))

// RenderFallbackPage writes the failure page for f.
func RenderFallbackPage(w io.Writer, f render.Failure) error {
	return fallbackTemplate.Execute(w, f)
}
