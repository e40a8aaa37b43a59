package payments

import (
	"html/template"
	"io"
	"sort"
)

var formPage = template.Must(template.New("payment-redirect").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body>
<p>Redirecting to the payment page&hellip;</p>
<form id="payment-redirect" method="POST" action="{{.Action}}" style="display:none">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit" style="display:block">Continue to payment</button></noscript>
</form>
<script>
(function () {
  var form = document.getElementById("payment-redirect");
  form.submit();
  setTimeout(function () { if (form.parentNode) { form.parentNode.removeChild(form); } }, 1000);
})();
</script>
</body>
</html>
`))

type formField struct {
	Name  string
	Value string
}

// RenderRedirect writes a page that posts form in the same window and removes
// the form shortly after submission.
func RenderRedirect(w io.Writer, form *RedirectForm) error {
	names := make([]string, 0, len(form.Fields))
	for name := range form.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]formField, 0, len(names))
	for _, name := range names {
		fields = append(fields, formField{Name: name, Value: form.Fields[name]})
	}
	return formPage.Execute(w, struct {
		Action string
		Fields []formField
	}{Action: form.Action, Fields: fields})
}
