package netbiblio

import (
	"context"
	"strings"

	"opacbridge/internal/opac"
	"opacbridge/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func (a *Adapter) SearchFields(ctx context.Context) ([]opac.SearchField, error) {
	err := a.start(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := a.get(ctx, a.baseURL+"/search/extended")
	if err != nil {
		return nil, err
	}

	var fields []opac.SearchField
	doc.Find(".wo-searchfield-dropdown").First().Find("option").Each(func(_ int, o *goquery.Selection) {
		f := opac.TextField(o.AttrOr("value", ""), htmlutil.Text(o))
		if f.ID == defaultField {
			f.FreeSearch = true
			f.Meaning = opac.MeaningFree
		}
		fields = append(fields, f)
	})

	doc.Find(".wo-filterfield").Each(func(_ int, panel *goquery.Selection) {
		title := htmlutil.Text(panel.Find(".panel-title"))
		switch panel.AttrOr("data-filterfieldtype", "") {
		case "Checkbox":
			if f, ok := checkboxFilter(panel, title); ok {
				fields = append(fields, f)
			}
		case "Date":
			panel.Find("input[type=text]").Each(func(i int, input *goquery.Selection) {
				f := opac.TextField(input.AttrOr("name", ""), title)
				f.Advanced = true
				f.Hint = previousText(input)
				f.HalfWidth = i == 1
				fields = append(fields, f)
			})
		}
	})
	return fields, nil
}

// checkboxFilter folds a group of filter checkboxes into one dropdown, the
// checked mode radio button is kept to be sent along.
func checkboxFilter(panel *goquery.Selection, title string) (opac.SearchField, bool) {
	boxes := panel.Find("input[type=checkbox]")
	if boxes.Length() == 0 {
		return opac.SearchField{}, false
	}
	options := []opac.DropdownOption{{Key: "", Value: ""}}
	boxes.Each(func(_ int, box *goquery.Selection) {
		options = append(options, opac.DropdownOption{
			Key:   box.AttrOr("value", ""),
			Value: htmlutil.Text(box.Next()),
		})
	})
	f := opac.DropdownField(boxes.First().AttrOr("name", ""), title, options)
	f.Advanced = true
	if mode := panel.Find("input[type=radio][name$=-mode][checked]").First(); mode.Length() > 0 {
		f = f.WithData("modeKey", mode.AttrOr("name", "")).WithData("modeValue", mode.AttrOr("value", ""))
	}
	return f, true
}

// previousText is the text node right before the first node of sel, the
// date filters label their inputs that way.
func previousText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	prev := sel.Nodes[0].PrevSibling
	if prev == nil || prev.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(prev.Data)
}
