package koha

import (
	"context"
	"strings"

	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// freeSearchIndex searches keywords and words in all indexes.
const freeSearchIndex = "kw,wrdl"

func (a *Adapter) SearchFields(ctx context.Context) ([]opac.SearchField, error) {
	doc, err := a.get(ctx, a.url("opac-search.pl"))
	if err != nil {
		return nil, err
	}

	free := opac.TextField(freeSearchIndex, "Freitext")
	free.FreeSearch = true
	free.Meaning = opac.MeaningFree
	fields := []opac.SearchField{free}

	indexes := doc.Find("#search-field_0").First()
	if indexes.Length() == 0 {
		a.tel.ReportWarning(report_fields_missing_index, a.baseURL)
	}
	indexes.Find("option").Each(func(_ int, o *goquery.Selection) {
		value, _ := o.Attr("value")
		if value == "" {
			return
		}
		fields = append(fields, opac.TextField(value, htmlutil.Text(o)))
	})

	// the limit checkboxes of every advanced search tab become one dropdown
	tabs := doc.Find("#advsearches .ui-tabs-nav li")
	doc.Find("#advsearches fieldset").Each(func(i int, fieldset *goquery.Selection) {
		if i >= tabs.Length() {
			return
		}
		checkboxes := fieldset.Find("input[type=checkbox]")
		if checkboxes.Length() == 0 {
			return
		}
		title := htmlutil.Text(tabs.Eq(i))
		options := []opac.DropdownOption{{Key: "", Value: ""}}
		checkboxes.Each(func(_ int, cb *goquery.Selection) {
			value, _ := cb.Attr("value")
			options = append(options, opac.DropdownOption{Key: value, Value: htmlutil.Text(cb.Next())})
		})
		name, _ := checkboxes.First().Attr("name")
		field := opac.DropdownField(title, title, options).WithData("id", name)
		field.Advanced = true
		fields = append(fields, field)
	})

	doc.Find("legend + label + select").Each(func(_ int, dropdown *goquery.Selection) {
		title := strings.TrimSuffix(htmlutil.Text(dropdown.Prev().Prev()), ":")
		var options []opac.DropdownOption
		dropdown.Find("option").Each(func(_ int, o *goquery.Selection) {
			value, _ := o.Attr("value")
			options = append(options, opac.DropdownOption{Key: value, Value: htmlutil.Text(o)})
		})
		name, _ := dropdown.Attr("name")
		field := opac.DropdownField(title, title, options).WithData("id", name)
		field.Advanced = true
		fields = append(fields, field)
	})

	available := doc.Find("#available-items").First()
	if value, ok := available.Attr("value"); ok {
		field := opac.CheckboxField(value, htmlutil.Text(available.Parent()))
		field.Meaning = opac.MeaningAvailable
		fields = append(fields, field)
	}

	return fields, nil
}
