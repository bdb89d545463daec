// Package report renders a submission into the printable HTML document that
// gets uploaded and linked from notifications.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/utils"
)

type Renderer interface {
	Render(submission *entity.Submission) ([]byte, error)
	FileName(submission *entity.Submission) string
}

type HTMLRenderer struct {
	companyName string
	tmpl        *template.Template
}

func NewHTMLRenderer(companyName string) (*HTMLRenderer, error) {
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, err
	}
	return &HTMLRenderer{companyName: companyName, tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Render(submission *entity.Submission) ([]byte, error) {
	data := map[string]any{
		"Company":       r.companyName,
		"S":             submission,
		"SubmittedAt":   utils.FormatEpoch(submission.CreatedAt),
		"PurchasePrice": Currency(submission.PurchasePrice),
		"Revenue":       Currency(submission.Revenue),
		"AvgSDE":        optCurrency(submission.AvgSDE),
		"Adjustments":   optCurrency(submission.TotalAdjustments),
		"IsLOI":         submission.FormType == entity.FormTypeLOI,
		"IsCIM":         submission.FormType == entity.FormTypeCIM,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *HTMLRenderer) FileName(submission *entity.Submission) string {
	return fmt.Sprintf("%s_submission_%d.html", submission.FormType, submission.ID)
}

// Currency formats a dollar amount with thousands separators, e.g. $1,250,000.
func Currency(amount float64) string {
	whole := strconv.FormatFloat(amount, 'f', 0, 64)
	neg := false
	if len(whole) > 0 && whole[0] == '-' {
		neg = true
		whole = whole[1:]
	}

	var out []byte
	for i, c := range []byte(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}

	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}

func optCurrency(amount *float64) string {
	if amount == nil {
		return "Not specified"
	}
	return Currency(*amount)
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.S.FormType}} Submission - {{.S.FullName}}</title>
<style>
body { font-family: Georgia, serif; margin: 40px; color: #222; }
h1 { border-bottom: 2px solid #2c3e50; padding-bottom: 8px; }
h2 { color: #2c3e50; margin-top: 28px; }
dt { font-weight: bold; margin-top: 10px; }
dd { margin: 2px 0 0 0; }
.meta { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>{{.Company}}</h1>
<p class="meta">{{.S.FormType}} Questionnaire &middot; Submitted {{.SubmittedAt}}</p>

<h2>Contact</h2>
<dl>
<dt>Full Name</dt><dd>{{.S.FullName}}</dd>
<dt>Email</dt><dd>{{.S.Email}}</dd>
</dl>

<h2>Business</h2>
<dl>
{{if .S.Industry}}<dt>Industry</dt><dd>{{.S.Industry}}</dd>{{end}}
{{if .S.Location}}<dt>Location</dt><dd>{{.S.Location}}</dd>{{end}}
{{if .S.SellerRole}}<dt>Seller Role</dt><dd>{{.S.SellerRole}}</dd>{{end}}
<dt>Purchase Price</dt><dd>{{.PurchasePrice}}</dd>
<dt>Revenue</dt><dd>{{.Revenue}}</dd>
<dt>Average SDE</dt><dd>{{.AvgSDE}}</dd>
{{if .IsCIM}}<dt>Total Adjustments</dt><dd>{{.Adjustments}}</dd>{{end}}
</dl>

{{if .IsCIM}}
<h2>Management</h2>
<dl>
{{if .S.GMInPlace}}<dt>GM in Place</dt><dd>{{.S.GMInPlace}}</dd>{{end}}
{{if .S.TenureOfGM}}<dt>Tenure of GM</dt><dd>{{.S.TenureOfGM}}</dd>{{end}}
{{if .S.NumberOfEmployees}}<dt>Employees</dt><dd>{{.S.NumberOfEmployees}}</dd>{{end}}
</dl>
{{end}}

<h2>Deal Notes</h2>
<dl>
{{if .S.ReasonForSelling}}<dt>Reason for Selling</dt><dd>{{.S.ReasonForSelling}}</dd>{{end}}
{{if .S.OwnerInvolvement}}<dt>Owner Involvement</dt><dd>{{.S.OwnerInvolvement}}</dd>{{end}}
{{if .IsLOI}}
{{if .S.CustomerConcentrationRisk}}<dt>Customer Concentration Risk</dt><dd>{{.S.CustomerConcentrationRisk}}</dd>{{end}}
{{if .S.DealCompetitiveness}}<dt>Deal Competitiveness</dt><dd>{{.S.DealCompetitiveness}}</dd>{{end}}
{{if .S.SellerNoteOpenness}}<dt>Seller Note Openness</dt><dd>{{.S.SellerNoteOpenness}}</dd>{{end}}
{{end}}
</dl>

<h2>Search Narrative</h2>
<dl>
{{if .S.SearchNarrativeFit}}<dt>Narrative Fit</dt><dd>{{.S.SearchNarrativeFit}}</dd>{{end}}
{{if .S.SearchNarrativeRelation}}<dt>Relation to Narrative</dt><dd>{{.S.SearchNarrativeRelation}}</dd>{{end}}
{{if .S.DealLikesDislikes}}<dt>Likes / Dislikes</dt><dd>{{.S.DealLikesDislikes}}</dd>{{end}}
{{if .S.DealQuestionsConcerns}}<dt>Questions / Concerns</dt><dd>{{.S.DealQuestionsConcerns}}</dd>{{end}}
</dl>
</body>
</html>`
