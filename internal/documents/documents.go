// Package documents turns school API payloads into render inputs: field maps,
// templates and pagination choices for each document kind.
package documents

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/documents/format"
	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/internal/normalize"
	"github.com/printdesk/printdesk/internal/placeholder"
	"github.com/printdesk/printdesk/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// Built-in templates use [[ ]] so {{placeholders}} pass through to substitution.
var templates = template.Must(template.New("documents").
	Delims("[[", "]]").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(templateFS, "templates/*.html"))

// DefaultContractTemplate is used when neither the request nor the contract
// carries a template
func DefaultContractTemplate() string {
	data, err := templateFS.ReadFile("templates/contract_default.html")
	if err != nil {
		panic(err)
	}
	return string(data)
}

// QRConfig points at the external QR image service
type QRConfig struct {
	// Endpoint is the image service URL; the payload is sent as the data
	// query parameter
	Endpoint string `yaml:"endpoint"`
	// Size is the image side in px
	Size int `yaml:"size"`
}

// QR defaults
const (
	DefaultQREndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	DefaultQRSize     = 180
)

// ImageURL builds the QR image URL for payload. An empty endpoint disables
// QR images.
func (q QRConfig) ImageURL(payload string) string {
	if q.Endpoint == "" || payload == "" {
		return ""
	}
	size := q.size()
	sep := "?"
	if strings.Contains(q.Endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssize=%dx%d&data=%s", q.Endpoint, sep, size, size, url.QueryEscape(payload))
}

func (q QRConfig) size() int {
	if q.Size > 0 {
		return q.Size
	}
	return DefaultQRSize
}

// Builder builds render inputs. All formatting happens here so the rendering
// pipeline only ever sees display strings.
type Builder struct {
	Format *format.Formatter
	QR     QRConfig
	// Now supplies the {{date}} value and the overdue cut-off
	Now func() time.Time
}

// NewBuilder creates a builder; a nil formatter uses pt-BR
func NewBuilder(f *format.Formatter, qr QRConfig) *Builder {
	if f == nil {
		f = format.Default()
	}
	return &Builder{Format: f, QR: qr, Now: time.Now}
}

func (b *Builder) today() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// SchoolFields returns the school part of the placeholder vocabulary plus
// {{date}}, in vocabulary order
func (b *Builder) SchoolFields(school *model.School) *placeholder.FieldMap {
	fm := placeholder.NewFieldMap()
	if school == nil {
		school = &model.School{}
	}
	fm.Set("school_name", school.Name)
	fm.Set("school_code", school.Code.String())
	fm.Set("school_city", school.City)
	fm.Set("school_signature_name", school.SignatureName)
	fm.Set("date", b.Format.DateOf(b.today()))
	return fm
}

// ContractFields returns the full placeholder vocabulary for a contract
func (b *Builder) ContractFields(school *model.School, c *model.Contract) *placeholder.FieldMap {
	fm := b.SchoolFields(school)
	fm.Set("student_name", c.StudentName)
	fm.Set("payer_name", c.PayerName)
	fm.Set("description", c.Description)
	fm.Set("total_amount", b.Format.Amount(b.contractTotal(c)))
	fm.Set("installments_count", strconv.Itoa(len(c.Installments)))
	fm.Set("first_due_date", b.Format.Date(firstDueDate(c.Installments)))
	return fm
}

// contractTotal falls back to the installment sum when the contract has no
// total. A missing installment amount leaves the total unknown rather than
// understated.
func (b *Builder) contractTotal(c *model.Contract) model.Amount {
	if c.TotalAmount.Valid {
		return c.TotalAmount
	}
	if len(c.Installments) == 0 {
		return model.Amount{}
	}
	var sum float64
	for _, inst := range c.Installments {
		if !inst.Amount.Valid {
			return model.Amount{}
		}
		sum += inst.Amount.Value
	}
	return model.NewAmount(sum)
}

// firstDueDate is the earliest ISO due date, or the first one when none parse
func firstDueDate(installments []model.Installment) string {
	var first string
	var firstT time.Time
	for _, inst := range installments {
		t, ok := format.ParseDate(inst.DueDate)
		if !ok {
			continue
		}
		if first == "" || t.Before(firstT) {
			first, firstT = inst.DueDate, t
		}
	}
	if first == "" && len(installments) > 0 {
		return installments[0].DueDate
	}
	return first
}

// ContractOptions tune ContractInput
type ContractOptions struct {
	// Template overrides the contract's own template
	Template string
	// IncludeSchedule appends the installment table
	IncludeSchedule bool
}

// ContractInput builds a paginated contract document. The template comes
// from opts, else the contract, else DefaultContractTemplate.
func (b *Builder) ContractInput(school *model.School, c *model.Contract, opts ContractOptions) (render.Input, error) {
	tpl := opts.Template
	if strings.TrimSpace(tpl) == "" {
		tpl = c.Template
	}
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultContractTemplate()
	}

	// Plain text becomes paragraphs before substitution, so values are
	// always escaped into markup and never reinterpreted as it.
	tpl = normalize.Normalize(tpl)

	fields := b.ContractFields(school, c)
	if opts.IncludeSchedule && len(c.Installments) > 0 {
		schedule, err := b.scheduleHTML(c)
		if err != nil {
			return render.Input{}, err
		}
		tpl += "\n" + schedule
	}

	return render.Input{
		Kind:      consts.KindContract,
		Title:     titleOf("Contrato", c.StudentName),
		Template:  tpl,
		Fields:    escapeValues(fields),
		Paginate:  true,
		AutoPrint: false,
	}, nil
}

type scheduleRow struct {
	Number      int
	DueDate     string
	Amount      string
	Status      string
	StatusClass string
}

func (b *Builder) scheduleHTML(c *model.Contract) (string, error) {
	rows := make([]scheduleRow, 0, len(c.Installments))
	for i, inst := range c.Installments {
		n := inst.Number
		if n == 0 {
			n = i + 1
		}
		class := b.installmentStatus(inst.Status, inst.DueDate)
		rows = append(rows, scheduleRow{
			Number:      n,
			DueDate:     b.Format.Date(inst.DueDate),
			Amount:      b.Format.Amount(inst.Amount),
			Status:      statusLabel(class),
			StatusClass: class,
		})
	}
	return execute("schedule.html", map[string]any{"Rows": rows, "Total": len(c.Installments)})
}

type bookletView struct {
	Number       int
	Total        int
	DueDate      string
	Amount       string
	BoletoCode   string
	PixCopyPaste string
	QRImageURL   string
	QRSize       int
	Instructions string
}

// BookletInput builds the single-page payment slip for installment n
func (b *Builder) BookletInput(school *model.School, c *model.Contract, n int) (render.Input, error) {
	inst, ok := c.InstallmentByNumber(n)
	if !ok {
		return render.Input{}, fmt.Errorf("contract %s has no installment %d", c.ID, n)
	}
	number := inst.Number
	if number == 0 {
		number = n
	}
	view := bookletView{
		Number:       number,
		Total:        len(c.Installments),
		DueDate:      b.Format.Date(inst.DueDate),
		Amount:       b.Format.Amount(inst.Amount),
		BoletoCode:   inst.BoletoCode,
		PixCopyPaste: inst.PixCopyPaste,
		QRImageURL:   b.QR.ImageURL(inst.PixCopyPaste),
		QRSize:       b.QR.size(),
		Instructions: inst.PaymentInstructions,
	}
	body, err := execute("booklet.html", view)
	if err != nil {
		return render.Input{}, err
	}
	return render.Input{
		Kind:     consts.KindBooklet,
		Title:    titleOf(fmt.Sprintf("Carnê %d/%d", view.Number, view.Total), c.StudentName),
		Template: body,
		Fields:   escapeValues(b.ContractFields(school, c)),
	}, nil
}

type statementRow struct {
	Description string
	StudentName string
	DueDate     string
	Amount      string
	Status      string
	StatusClass string
	ReceivedAt  string
}

// StatementInput builds a guardian's financial statement with totals
func (b *Builder) StatementInput(school *model.School, s *model.GuardianStatement) (render.Input, error) {
	var paid, open, overdue float64
	rows := make([]statementRow, 0, len(s.Items))
	for _, item := range s.Items {
		class := b.installmentStatus(item.Status, item.DueDate)
		switch class {
		case model.InstallmentStatusPaid:
			paid += item.Amount.Value
		case model.InstallmentStatusOverdue:
			overdue += item.Amount.Value
		case model.InstallmentStatusOpen:
			open += item.Amount.Value
		}
		rows = append(rows, statementRow{
			Description: item.Description,
			StudentName: item.StudentName,
			DueDate:     b.Format.Date(item.DueDate),
			Amount:      b.Format.Amount(item.Amount),
			Status:      statusLabel(class),
			StatusClass: class,
			ReceivedAt:  b.Format.Date(item.ReceivedAt),
		})
	}

	body, err := execute("statement.html", map[string]any{
		"Guardian": s.Guardian.Name,
		"Document": s.Guardian.Document,
		"Rows":     rows,
		"Paid":     b.Format.Currency(paid),
		"Open":     b.Format.Currency(open),
		"Overdue":  b.Format.Currency(overdue),
	})
	if err != nil {
		return render.Input{}, err
	}
	fields := b.SchoolFields(school)
	fields.Set("payer_name", s.Guardian.Name)
	return render.Input{
		Kind:     consts.KindStatement,
		Title:    titleOf("Extrato financeiro", s.Guardian.Name),
		Template: body,
		Fields:   escapeValues(fields),
	}, nil
}

type gradebookRow struct {
	Name       string
	Score      string
	Absences   int
	Present    int
	Absent     int
	Justified  int
	Attendance string
}

// GradebookInput builds the class report. It prints itself once laid out.
func (b *Builder) GradebookInput(school *model.School, r *model.GradebookReport) (render.Input, error) {
	rows := make([]gradebookRow, 0, len(r.Students))
	for _, s := range r.Students {
		total := s.PresentCount + s.AbsentCount + s.JustifiedCount
		rows = append(rows, gradebookRow{
			Name:       s.StudentName,
			Score:      b.Format.Score(s.Score),
			Absences:   s.AbsencesGradebook,
			Present:    s.PresentCount,
			Absent:     s.AbsentCount,
			Justified:  s.JustifiedCount,
			Attendance: b.Format.Percent(s.PresentCount+s.JustifiedCount, total),
		})
	}
	g := r.Gradebook
	body, err := execute("gradebook.html", map[string]any{
		"ClassName": g.ClassName,
		"Subject":   g.Subject,
		"Period":    g.Period,
		"Teacher":   g.Teacher,
		"Rows":      rows,
	})
	if err != nil {
		return render.Input{}, err
	}
	name := strings.TrimSpace(strings.Join(nonEmpty(g.ClassName, g.Subject), " - "))
	return render.Input{
		Kind:      consts.KindGradebook,
		Title:     titleOf("Diário de classe", name),
		Template:  body,
		Fields:    escapeValues(b.SchoolFields(school)),
		AutoPrint: true,
	}, nil
}

type reportCardRow struct {
	Name        string
	Grades      []string
	Average     string
	Status      string
	StatusClass string
}

// ReportCardInput builds a subjects by periods report card
func (b *Builder) ReportCardInput(school *model.School, r *model.StudentReport) (render.Input, error) {
	periods := make([]string, len(r.Periods))
	for i, p := range r.Periods {
		periods[i] = p.Name
	}
	rows := make([]reportCardRow, 0, len(r.Subjects))
	for _, s := range r.Subjects {
		grades := make([]string, len(r.Periods))
		for i, p := range r.Periods {
			grades[i] = b.Format.Score(s.Grade(p.ID))
		}
		status, class := subjectStatus(s)
		rows = append(rows, reportCardRow{
			Name:        s.Name,
			Grades:      grades,
			Average:     b.Format.Score(s.AverageScore),
			Status:      status,
			StatusClass: class,
		})
	}
	year := ""
	if r.Year > 0 {
		year = strconv.Itoa(r.Year)
	}
	body, err := execute("report_card.html", map[string]any{
		"Year":       year,
		"ClassName":  r.Student.ClassName,
		"Enrollment": r.Student.Enrollment.String(),
		"Periods":    periods,
		"Rows":       rows,
		"Colspan":    len(periods) + 3,
	})
	if err != nil {
		return render.Input{}, err
	}
	fields := b.SchoolFields(school)
	fields.Set("student_name", r.Student.Name)
	return render.Input{
		Kind:     consts.KindReportCard,
		Title:    titleOf(strings.TrimSpace("Boletim "+year), r.Student.Name),
		Template: body,
		Fields:   escapeValues(fields),
	}, nil
}

// installmentStatus normalizes an API status; open items past due are overdue
func (b *Builder) installmentStatus(status, dueDate string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "paid", "pago", "received", "recebido":
		return model.InstallmentStatusPaid
	case "canceled", "cancelled", "cancelado":
		return model.InstallmentStatusCanceled
	case "overdue", "late", "vencido", "atrasado":
		return model.InstallmentStatusOverdue
	}
	if due, ok := format.ParseDate(dueDate); ok {
		y, m, d := b.today().Date()
		if due.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			return model.InstallmentStatusOverdue
		}
	}
	return model.InstallmentStatusOpen
}

func statusLabel(class string) string {
	switch class {
	case model.InstallmentStatusPaid:
		return "Pago"
	case model.InstallmentStatusOverdue:
		return "Vencido"
	case model.InstallmentStatusCanceled:
		return "Cancelado"
	default:
		return "Em aberto"
	}
}

func subjectStatus(s model.SubjectResult) (label, class string) {
	if s.Approved != nil {
		if *s.Approved {
			return "Aprovado", "approved"
		}
		return "Reprovado", "failed"
	}
	if s.Status != "" {
		return s.Status, "open"
	}
	return "Em andamento", "open"
}

// escapeValues HTML-escapes field values for substitution into markup
func escapeValues(fields *placeholder.FieldMap) *placeholder.FieldMap {
	out := placeholder.NewFieldMap()
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		out.Set(k, html.EscapeString(v))
	}
	return out
}

func execute(name string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return sb.String(), nil
}

func titleOf(prefix, subject string) string {
	if strings.TrimSpace(subject) == "" {
		return prefix
	}
	return prefix + " - " + subject
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
