package openapi

import (
	"bytes"
	"html/template"
)

var swaggerUI = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "{{.SchemaURL}}", dom_id: "#swagger-ui", persistAuthorization: true});
  </script>
</body>
</html>
`))

var redoc = template.Must(template.New("redoc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
</head>
<body>
  <redoc spec-url="{{.SchemaURL}}"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>
`))

type page struct {
	Title     string
	SchemaURL string
}

// SwaggerUI renders a Swagger UI page loading the document at schemaURL.
func SwaggerUI(title, schemaURL string) ([]byte, error) {
	return render(swaggerUI, page{Title: title, SchemaURL: schemaURL})
}

// Redoc renders a ReDoc page loading the document at schemaURL.
func Redoc(title, schemaURL string) ([]byte, error) {
	return render(redoc, page{Title: title, SchemaURL: schemaURL})
}

func render(t *template.Template, p page) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
