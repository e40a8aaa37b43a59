package payments

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderRedirectAutoSubmits(t *testing.T) {
	var buf bytes.Buffer
	err := RenderRedirect(&buf, &RedirectForm{
		Action: "https://secure.payu.in/_payment",
		Fields: map[string]string{"key": "mk_1", "productinfo": `Polity "notes" <b>`},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	for _, want := range []string{
		`action="https://secure.payu.in/_payment"`,
		`name="key" value="mk_1"`,
		`form.submit()`,
		`removeChild(form)`,
		`&lt;b&gt;`,
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}
}
