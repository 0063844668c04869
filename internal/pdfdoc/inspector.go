package pdfdoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/samber/lo"

	"claimease/internal/domain"
)

// AcroForm field flags.
const (
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
)

// maxFieldDepth bounds the field tree walk on malformed documents.
const maxFieldDepth = 32

// Inspector reads AcroForm structure with pdfcpu.
type Inspector struct{}

// NewInspector creates an Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// inherited carries the inheritable field attributes down the field tree.
type inherited struct {
	name   string
	ft     string
	ff     int
	maxLen int
}

// InspectForm returns the page count and declared fields of the form at path.
// A document without an AcroForm yields zero fields.
func (i *Inspector) InspectForm(ctx context.Context, path string) (*domain.FormAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTemplateUnreadable, path, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %s: counting pages: %v", domain.ErrTemplateUnreadable, path, err)
	}

	res := &domain.FormAnalysis{
		TotalPages: pctx.PageCount,
		Fields:     []domain.FormField{},
		FieldTypes: []domain.FieldType{},
	}

	acro, err := acroForm(pctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTemplateUnreadable, path, err)
	}
	if acro == nil {
		return res, nil
	}

	pages := widgetPages(pctx)
	roots, err := derefArray(pctx, acro, "Fields")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading fields: %v", domain.ErrTemplateUnreadable, path, err)
	}
	for _, root := range roots {
		res.Fields = append(res.Fields, walkField(pctx, root, inherited{}, pages, 0)...)
	}

	res.TotalFields = len(res.Fields)
	res.WidgetFields = res.TotalFields
	res.FieldTypes = lo.Uniq(lo.Map(res.Fields, func(f domain.FormField, _ int) domain.FieldType {
		return f.Type
	}))
	return res, nil
}

func acroForm(pctx *model.Context) (types.Dict, error) {
	obj, found := pctx.RootDict.Find("AcroForm")
	if !found || obj == nil {
		return nil, nil
	}
	return pctx.DereferenceDict(obj)
}

func derefArray(pctx *model.Context, d types.Dict, key string) (types.Array, error) {
	obj, found := d.Find(key)
	if !found || obj == nil {
		return nil, nil
	}
	return pctx.DereferenceArray(obj)
}

// widgetPages maps widget annotation object numbers to their 1-based page.
func widgetPages(pctx *model.Context) map[int]int {
	pages := map[int]int{}
	for p := 1; p <= pctx.PageCount; p++ {
		d, _, _, err := pctx.PageDict(p, false)
		if err != nil || d == nil {
			continue
		}
		annots, err := derefArray(pctx, d, "Annots")
		if err != nil {
			continue
		}
		for _, a := range annots {
			if ir, ok := a.(types.IndirectRef); ok {
				pages[ir.ObjectNumber.Value()] = p
			}
		}
	}
	return pages
}

// walkField flattens one node of the field tree into terminal fields.
func walkField(pctx *model.Context, obj types.Object, parent inherited, pages map[int]int, depth int) []domain.FormField {
	if depth > maxFieldDepth {
		return nil
	}
	d, err := pctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return nil
	}

	cur := parent
	if partial := stringEntry(pctx, d, "T"); partial != "" {
		cur.name = joinName(parent.name, partial)
	}
	if ft := d.NameEntry("FT"); ft != nil {
		cur.ft = *ft
	}
	if ff := intEntry(pctx, d, "Ff"); ff != nil {
		cur.ff = *ff
	}
	if ml := intEntry(pctx, d, "MaxLen"); ml != nil {
		cur.maxLen = *ml
	}

	kids, _ := derefArray(pctx, d, "Kids")
	var subFields, widgets []types.Object
	for _, k := range kids {
		kd, err := pctx.DereferenceDict(k)
		if err != nil || kd == nil {
			continue
		}
		if _, named := kd.Find("T"); named {
			subFields = append(subFields, k)
		} else {
			widgets = append(widgets, k)
		}
	}

	if len(subFields) > 0 {
		var out []domain.FormField
		for _, k := range subFields {
			out = append(out, walkField(pctx, k, cur, pages, depth+1)...)
		}
		return out
	}
	if cur.name == "" {
		return nil
	}

	// The field dictionary is its own widget unless it has widget kids.
	widget := obj
	if len(widgets) > 0 {
		widget = widgets[0]
	}
	field := domain.FormField{
		Name:      cur.name,
		Type:      FieldTypeOf(cur.ft, cur.ff),
		Required:  cur.ff&flagRequired != 0,
		MaxLength: cur.maxLen,
		Page:      1,
	}
	if ir, ok := widget.(types.IndirectRef); ok {
		if p, found := pages[ir.ObjectNumber.Value()]; found {
			field.Page = p
		}
	}
	if wd, err := pctx.DereferenceDict(widget); err == nil && wd != nil {
		if rect, err := derefArray(pctx, wd, "Rect"); err == nil {
			field.Rect = rectOf(rect)
		}
	}
	return []domain.FormField{field}
}

// FieldTypeOf classifies an AcroForm field by its FT name and Ff flags.
func FieldTypeOf(ft string, ff int) domain.FieldType {
	switch ft {
	case "Tx":
		return domain.FieldTypeText
	case "Btn":
		switch {
		case ff&flagPushButton != 0:
			return domain.FieldTypePushButton
		case ff&flagRadio != 0:
			return domain.FieldTypeRadio
		default:
			return domain.FieldTypeCheckbox
		}
	case "Ch":
		return domain.FieldTypeChoice
	case "Sig":
		return domain.FieldTypeSignature
	default:
		return domain.FieldTypeUnknown
	}
}

func joinName(parent, partial string) string {
	if parent == "" {
		return partial
	}
	return parent + "." + partial
}

func stringEntry(pctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found || obj == nil {
		return ""
	}
	obj, err := pctx.Dereference(obj)
	if err != nil || obj == nil {
		return ""
	}
	s, err := types.StringOrHexLiteral(obj)
	if err != nil || s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func intEntry(pctx *model.Context, d types.Dict, key string) *int {
	obj, found := d.Find(key)
	if !found || obj == nil {
		return nil
	}
	obj, err := pctx.Dereference(obj)
	if err != nil {
		return nil
	}
	if i, ok := obj.(types.Integer); ok {
		v := i.Value()
		return &v
	}
	return nil
}

func number(o types.Object) float64 {
	switch v := o.(type) {
	case types.Integer:
		return float64(v.Value())
	case types.Float:
		return v.Value()
	default:
		return 0
	}
}

func rectOf(a types.Array) domain.Rect {
	if len(a) != 4 {
		return domain.Rect{}
	}
	return domain.Rect{LLX: number(a[0]), LLY: number(a[1]), URX: number(a[2]), URY: number(a[3])}
}
