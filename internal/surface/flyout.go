package surface

import (
	"context"
	"text/template"
)

var flyoutTmpl = template.Must(template.New("flyout").Parse(
	`{{if .Empty}}Your cart is empty.
{{else}}{{range .Lines}}{{.ID}}  {{.Name}}  x{{.Quantity}}{{if .HasDraft}} (editing: {{.Draft}}){{end}}  {{.Total}}
{{end}}Total: {{.Total}}
{{end}}{{if .Disabled}}(updating...)
{{end}}{{with .Error}}! {{.}}
{{end}}`))

// Visibility reports whether an overlay is shown.
type Visibility interface {
	IsOpen() bool
}

// Flyout is the compact overlay list. It renders nothing while closed.
type Flyout struct {
	*listView
	vis Visibility
}

func NewFlyout(src CartSource, editor CartEditor, vis Visibility) *Flyout {
	return &Flyout{listView: newListView(src, editor, flyoutTmpl), vis: vis}
}

func (f *Flyout) Render() (string, error) {
	if f.vis != nil && !f.vis.IsOpen() {
		return "", nil
	}
	return f.render()
}

// Page is the full cart view.
type Page struct {
	*listView
}

var pageTmpl = template.Must(template.New("page").Parse(
	`Cart ({{.Count}} items)
{{if .Empty}}Your cart is empty.
{{else}}{{range .Lines}}- {{.Name}} [{{.SKU}}] id={{.ID}}
    {{.Quantity}} x {{.Unit}} = {{.Total}}{{if .HasDraft}}  (editing: {{.Draft}}){{end}}
{{end}}Subtotal: {{.Subtotal}}
Total:    {{.Total}}
{{end}}{{if .Disabled}}(updating, controls disabled)
{{end}}{{with .Error}}Error: {{.}}
{{end}}`))

func NewPage(src CartSource, editor CartEditor) *Page {
	return &Page{listView: newListView(src, editor, pageTmpl)}
}

func (p *Page) Render() (string, error) {
	return p.render()
}

// Clear empties the cart.
func (p *Page) Clear(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}
	_, err := p.editor.Clear(ctx)
	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.drafts = make(map[string]int)
	}
	p.mu.Unlock()
	return err
}
